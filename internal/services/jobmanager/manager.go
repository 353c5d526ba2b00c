// Package jobmanager runs queued background work: suggestion generation,
// portfolio reconciliation and price refreshes.
package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// JobManager owns a pool of processors draining the persistent job queue.
type JobManager struct {
	ledger      interfaces.LedgerService
	suggestions interfaces.SuggestionService
	quotes      interfaces.QuoteService
	storage     interfaces.StorageManager
	logger      *common.Logger
	events      *EventHub
	config      common.JobsConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ interfaces.JobManager = (*JobManager)(nil)

// NewJobManager creates a new job manager.
func NewJobManager(
	ledger interfaces.LedgerService,
	suggestions interfaces.SuggestionService,
	quotes interfaces.QuoteService,
	storage interfaces.StorageManager,
	logger *common.Logger,
	config common.JobsConfig,
) *JobManager {
	return &JobManager{
		ledger:      ledger,
		suggestions: suggestions,
		quotes:      quotes,
		storage:     storage,
		logger:      logger,
		events:      NewEventHub(logger),
		config:      config,
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (jm *JobManager) safeGo(name string, fn func()) {
	jm.wg.Add(1)
	go func() {
		defer jm.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				jm.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in job manager goroutine")
			}
		}()
		fn()
	}()
}

// Start launches the processor pool. Jobs left running by a previous
// process are returned to pending first. Calling Start again restarts
// the pool.
func (jm *JobManager) Start() {
	jm.Stop()

	jm.mu.Lock()
	defer jm.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	jm.cancel = cancel

	if count, err := jm.storage.JobQueueStore().ResetRunningJobs(ctx); err != nil {
		jm.logger.Warn().Err(err).Msg("Failed to reset orphaned running jobs")
	} else if count > 0 {
		jm.logger.Info().Int("count", count).Msg("Reset orphaned running jobs to pending")
	}

	workers := jm.config.MaxConcurrent
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		jm.safeGo(fmt.Sprintf("processor-%d", i), func() { jm.processLoop(ctx) })
	}

	jm.logger.Info().
		Int("max_concurrent", workers).
		Dur("poll_interval", jm.config.GetPollInterval()).
		Msg("Job manager started")
}

// Stop cancels the processors and waits for in-flight jobs to return.
func (jm *JobManager) Stop() {
	jm.mu.Lock()
	cancel := jm.cancel
	jm.cancel = nil
	jm.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	jm.wg.Wait()
	jm.logger.Info().Msg("Job manager stopped")
}

// Running reports whether the processor pool is active.
func (jm *JobManager) Running() bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.cancel != nil
}

// Events returns the hub that streams job state changes.
func (jm *JobManager) Events() *EventHub {
	return jm.events
}

// processLoop dequeues and executes jobs until ctx is cancelled.
func (jm *JobManager) processLoop(ctx context.Context) {
	idle := jm.config.GetPollInterval()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := jm.dequeue(ctx)
		if err != nil {
			jm.logger.Warn().Err(err).Msg("Processor: dequeue error")
		}
		if err != nil || job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idle):
				continue
			}
		}

		start := time.Now()
		execErr := jm.executeJob(ctx, job)
		durationMS := time.Since(start).Milliseconds()

		if execErr == nil {
			jm.logger.Debug().
				Str("job_id", job.ID).
				Str("job_type", job.JobType).
				Str("portfolio", job.PortfolioID).
				Int64("duration_ms", durationMS).
				Msg("Job completed")
			jm.complete(ctx, job, nil, durationMS)
			continue
		}

		jm.logger.Warn().
			Str("job_id", job.ID).
			Str("job_type", job.JobType).
			Str("portfolio", job.PortfolioID).
			Int64("duration_ms", durationMS).
			Err(execErr).
			Msg("Job failed")

		if job.Attempts < job.MaxAttempts && retryable(execErr) && ctx.Err() == nil {
			jm.logger.Info().
				Str("job_id", job.ID).
				Int("attempt", job.Attempts).
				Int("max", job.MaxAttempts).
				Msg("Re-queuing failed job")

			job.Error = execErr.Error()
			err := jm.storage.JobQueueStore().Requeue(ctx, job)
			if err == nil {
				continue
			}
			jm.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to re-queue job")
		}
		jm.complete(ctx, job, execErr, durationMS)
	}
}

// retryable reports whether running the job again could succeed. Caller
// mistakes and missing records are final.
func retryable(err error) bool {
	for _, final := range []error{
		models.ErrNotFound,
		models.ErrForbidden,
		models.ErrInvalidArgument,
		models.ErrInvalidStateTransition,
	} {
		if errors.Is(err, final) {
			return false
		}
	}
	return true
}
