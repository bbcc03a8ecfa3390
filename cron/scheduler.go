// Package cron runs the background sweepers on fixed intervals. The
// Scheduler is the single lifecycle owner: main starts it exactly once
// and Stop shuts every job down, which also keeps tests isolated.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type job struct {
	name string
	run  func(ctx context.Context) error
}

type Scheduler struct {
	interval time.Duration
	log      *slog.Logger
	jobs     []job

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

func NewScheduler(log *slog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{interval: interval, log: log}
}

func (s *Scheduler) Add(name string, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, job{name: name, run: run})
}

// Start launches every job: one run immediately, then one per tick.
// Errors are logged and swallowed; a failed run retries on the next
// tick. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stop = make(chan struct{})

	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runOnce(ctx, j)
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.runOnce(ctx, j)
				case <-s.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Stop halts all jobs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context, j job) {
	if err := j.run(ctx); err != nil {
		// A sweeper must never take the process down.
		s.log.Error("sweep failed", "job", j.name, "err", err)
	}
}
