package app

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/robfig/cron/v3"
)

// scheduledTimeout bounds a single run of a scheduled task.
const scheduledTimeout = 5 * time.Minute

// Scheduler runs periodic maintenance on cron schedules. Specs accept
// descriptors ("@hourly", "@every 15m") or six fields with seconds.
type Scheduler struct {
	cron    *cron.Cron
	logger  *common.Logger
	mu      sync.Mutex
	running bool
	names   []string
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *common.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		logger: logger.WithComponent("scheduler"),
	}
}

// newScheduler registers the standard maintenance tasks of an App.
// Tasks with an empty schedule are skipped.
func newScheduler(a *App) (*Scheduler, error) {
	s := NewScheduler(a.Logger)
	cfg := a.Config.Scheduler
	jm := a.JobManager

	if a.Config.Jobs.Enabled {
		if err := s.Add("price_refresh", cfg.PriceRefresh, func(ctx context.Context) error {
			_, err := jm.QueuePriceRefresh(ctx)
			return err
		}); err != nil {
			return nil, err
		}
		if err := s.Add("recovery_sweep", cfg.RecoverySweep, func(ctx context.Context) error {
			_, err := jm.SweepIncomplete(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}

	retention := a.Config.Ledger.GetJournalRetention()
	if err := s.Add("journal_cleanup", cfg.JournalCleanup, func(ctx context.Context) error {
		jm.Cleanup(ctx, retention)
		return nil
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Add registers fn under name. An empty schedule leaves the task disabled.
func (s *Scheduler) Add(name, schedule string, fn func(ctx context.Context) error) error {
	if schedule == "" {
		s.logger.Debug().Str("task", name).Msg("Task disabled")
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), scheduledTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("task", name).Msg("Scheduled task failed")
			return
		}
		s.logger.Debug().Str("task", name).Dur("elapsed", time.Since(start)).Msg("Scheduled task completed")
	})
	if err != nil {
		return err
	}

	s.names = append(s.names, name)
	s.logger.Info().Str("task", name).Str("schedule", schedule).Msg("Task registered")
	return nil
}

// Tasks returns the names of registered tasks.
func (s *Scheduler) Tasks() []string {
	return append([]string(nil), s.names...)
}

// Start begins running tasks on their schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("tasks", len(s.names)).Msg("Scheduler started")
}

// Stop waits for running tasks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}
