package connector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

const defaultKillGrace = 3 * time.Second

// Channel двунаправленный канал запрос/ответ до рантайма.
type Channel struct {
	// Reader вывод рантайма (его stdout).
	Reader io.Reader
	// Writer вход рантайма (его stdin).
	Writer io.WriteCloser
	// PID процесса рантайма, 0 если рантайм не является дочерним процессом.
	PID int

	done      chan struct{}
	cause     error
	closeFn   func() error
	closeOnce sync.Once
	closeErr  error
}

// NewChannel собирает канал. finish вызывается ровно один раз, когда рантайм
// завершился, и передает причину (nil при штатном выходе).
func NewChannel(r io.Reader, w io.WriteCloser, pid int, closeFn func() error) (*Channel, func(cause error)) {
	ch := &Channel{Reader: r, Writer: &lockedWriter{w: w}, PID: pid, done: make(chan struct{}), closeFn: closeFn}
	var once sync.Once
	finish := func(cause error) {
		once.Do(func() {
			ch.cause = cause
			close(ch.done)
		})
	}
	return ch, finish
}

// lockedWriter пишет каждое сообщение целиком: транспорт вызывает Write
// из нескольких горутин без собственной блокировки.
type lockedWriter struct {
	mu sync.Mutex
	w  io.WriteCloser
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (l *lockedWriter) Close() error { return l.w.Close() }

// Done закрывается, когда рантайм завершился или канал разорван.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Err причина завершения; читать только после закрытия Done.
func (c *Channel) Err() error {
	select {
	case <-c.done:
		return c.cause
	default:
		return nil
	}
}

// Close закрывает канал и освобождает рантайм. Повторные вызовы безопасны.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		if c.closeFn != nil {
			c.closeErr = c.closeFn()
		}
	})
	return c.closeErr
}

// Dialer открывает канал до рантайма.
type Dialer interface {
	Dial(ctx context.Context) (*Channel, error)
}

// CommandDialer запускает рантайм дочерним процессом и говорит с ним по stdio.
type CommandDialer struct {
	Command   string
	Args      []string
	Env       []string
	Dir       string
	KillGrace time.Duration
	Logger    *slog.Logger
}

// Dial запускает процесс. Процесс живет дольше ctx: он останавливается
// только через Channel.Close.
func (d *CommandDialer) Dial(ctx context.Context) (*Channel, error) {
	if d.Command == "" {
		return nil, errEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := d.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}

	cmd := exec.Command(d.Command, d.Args...) // #nosec G204 -- команда рантайма задается оператором в конфиге.
	cmd.Env = append(os.Environ(), d.Env...)
	cmd.Dir = d.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	// Собственные pipe вместо StdoutPipe: Wait не должен закрывать их,
	// пока транспорт еще читает.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		_ = stderrR.Close()
		_ = stderrW.Close()
		return nil, fmt.Errorf("start %s: %w", d.Command, err)
	}
	_ = stdoutW.Close()
	_ = stderrW.Close()

	pid := cmd.Process.Pid
	logger = logger.With("runtime_pid", pid)
	logger.Info("capability runtime started", "command", d.Command, "args", d.Args)

	exited := make(chan struct{})
	ch, finish := NewChannel(stdoutR, stdin, pid, func() error {
		_ = stdin.Close()
		select {
		case <-exited:
		case <-time.After(grace):
			logger.Warn("capability runtime did not exit in time, killing", "grace", grace)
			_ = cmd.Process.Kill()
			<-exited
		}
		return stdoutR.Close()
	})

	go drainStderr(stderrR, logger)
	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Warn("capability runtime exited", "err", err)
		} else {
			logger.Info("capability runtime exited")
		}
		close(exited)
		finish(err)
	}()

	return ch, nil
}

func drainStderr(r io.ReadCloser, logger *slog.Logger) {
	defer r.Close()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		logger.Debug("capability runtime stderr", "line", sc.Text())
	}
}
