package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job описывает периодическую задачу обслуживания.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler запускает задачи с фиксированным интервалом.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger
	jobs     []Job
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

// Add добавляет задачу в расписание.
func (s *Scheduler) Add(name string, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, Job{Name: name, Run: run})
}

// Start блокируется до отмены контекста; задачи одного тика идут параллельно.
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
				job := job
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					if err := job.Run(ctx); err != nil && ctx.Err() == nil {
						s.logger.Warn("scheduled job failed", "job", job.Name, "err", err)
					}
				}()
			}
		}
	}
}
