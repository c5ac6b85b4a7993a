package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

var errNoProcess = errors.New("runtime process is not known")

// Stats снимок ресурсов процесса рантайма. Поля best-effort: недоступные метрики остаются нулевыми.
type Stats struct {
	PID        int32     `json:"pid"`
	Running    bool      `json:"running"`
	Name       string    `json:"name,omitempty"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	Threads    int32     `json:"threads"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	UptimeSec  int64     `json:"uptime_sec"`
}

// Collect собирает статистику процесса pid.
func Collect(ctx context.Context, pid int) (Stats, error) {
	if pid <= 0 {
		return Stats{}, errNoProcess
	}
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Stats{PID: int32(pid)}, fmt.Errorf("process %d: %w", pid, err)
	}

	st := Stats{PID: proc.Pid}
	running, err := proc.IsRunningWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("process status: %w", err)
	}
	st.Running = running
	if !running {
		return st, nil
	}

	if name, err := proc.NameWithContext(ctx); err == nil {
		st.Name = name
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		st.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		st.RSSBytes = mem.RSS
	}
	if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
		st.Threads = threads
	}
	if created, err := proc.CreateTimeWithContext(ctx); err == nil && created > 0 {
		st.StartedAt = time.UnixMilli(created).UTC()
		st.UptimeSec = int64(time.Since(st.StartedAt).Seconds())
	}
	return st, nil
}
