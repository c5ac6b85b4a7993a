package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ventgate/internal/storage"
)

// Target то, что сэмплер опрашивает: коннектор или фейк.
type Target interface {
	Ready() bool
	PID() int
	Ping(ctx context.Context) error
}

// SampleWriter принимает снимки рантайма.
type SampleWriter interface {
	SaveSample(ctx context.Context, s storage.RuntimeSample) error
}

// Sampler периодически проверяет живость рантайма и пишет его ресурсы.
type Sampler struct {
	Target Target
	Store  SampleWriter
	Logger *slog.Logger
	Now    func() time.Time
}

// Run один проход; подходит как core.Job.
func (s *Sampler) Run(ctx context.Context) error {
	if s.Target == nil || !s.Target.Ready() {
		return nil
	}
	if err := s.Target.Ping(ctx); err != nil {
		return fmt.Errorf("ping runtime: %w", err)
	}

	st, err := Collect(ctx, s.Target.PID())
	if err != nil {
		s.logger().Debug("runtime stats unavailable", "err", err)
		return nil
	}
	s.logger().Debug("runtime sample", "pid", st.PID, "cpu_percent", st.CPUPercent, "rss_bytes", st.RSSBytes, "threads", st.Threads)

	if s.Store == nil {
		return nil
	}
	sample := storage.RuntimeSample{
		PID:        st.PID,
		CPUPercent: st.CPUPercent,
		RSSBytes:   st.RSSBytes,
		Threads:    st.Threads,
		TS:         s.now(),
	}
	if err := s.Store.SaveSample(ctx, sample); err != nil {
		return fmt.Errorf("save runtime sample: %w", err)
	}
	return nil
}

func (s *Sampler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Sampler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
