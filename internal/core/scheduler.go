package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job описывает периодическую задачу.
type Job func(ctx context.Context) error

type scheduledJob struct {
	name    string
	run     Job
	running atomic.Bool
}

// Scheduler запускает задачи с фиксированным интервалом. Запуск задачи
// пропускается, пока предыдущий еще не завершился.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger
	jobs     []*scheduledJob
	wg       sync.WaitGroup
}

// NewScheduler создает scheduler с заданным интервалом.
func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, logger: logger}
}

// Add добавляет задачу в расписание; вызывать до Start.
func (s *Scheduler) Add(name string, job Job) {
	s.jobs = append(s.jobs, &scheduledJob{name: name, run: job})
}

// Start блокируется до отмены контекста и ждет завершения запущенных задач.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			for _, job := range s.jobs {
				if !job.running.CompareAndSwap(false, true) {
					s.logger.Debug("scheduled job still running, skipping tick", "job", job.name)
					continue
				}
				s.wg.Add(1)
				go func(j *scheduledJob) {
					defer s.wg.Done()
					defer j.running.Store(false)
					if err := j.run(ctx); err != nil && ctx.Err() == nil {
						s.logger.Warn("scheduled job failed", "job", j.name, "err", err)
					}
				}(job)
			}
		}
	}
}
