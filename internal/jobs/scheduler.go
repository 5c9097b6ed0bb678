package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

// Job is one idempotent unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry binds a job to the day of the month it becomes due.
type Entry struct {
	Job Job
	Day int
}

// Scheduler runs each job once per calendar month, on or after its due day.
// Because the jobs are idempotent it also sweeps once at startup, which
// covers downtime across a month boundary.
type Scheduler struct {
	clock   ports.Clock
	entries []Entry
	tick    time.Duration

	mu   sync.Mutex
	done map[string]string // job name -> "2006-01" month it last ran
}

func NewScheduler(clock ports.Clock, entries []Entry) *Scheduler {
	return &Scheduler{
		clock:   clock,
		entries: entries,
		tick:    time.Hour,
		done:    make(map[string]string),
	}
}

// Run sweeps immediately, then hourly, until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sweep(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	now := s.clock.Now().UTC()
	month := now.Format("2006-01")
	for _, e := range s.entries {
		if now.Day() < e.Day {
			continue
		}
		if s.ranThisMonth(e.Job.Name(), month) {
			continue
		}
		logger.WithField("job", e.Job.Name()).Info("scheduler: running job")
		if err := e.Job.Run(ctx); err != nil {
			// Leave it pending; the next sweep retries.
			logger.Errorf("scheduler: job %s failed: %v", e.Job.Name(), err)
			continue
		}
		s.markRan(e.Job.Name(), month)
	}
}

// Trigger runs one job by name immediately, regardless of schedule.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	for _, e := range s.entries {
		if e.Job.Name() != name {
			continue
		}
		if err := e.Job.Run(ctx); err != nil {
			return err
		}
		s.markRan(name, s.clock.Now().UTC().Format("2006-01"))
		return nil
	}
	return fmt.Errorf("scheduler: unknown job %q", name)
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.Job.Name())
	}
	return names
}

func (s *Scheduler) ranThisMonth(name, month string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[name] == month
}

func (s *Scheduler) markRan(name, month string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[name] = month
}
