package jobmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// Enqueue queues a job for the caller. Portfolio jobs require a portfolio id;
// refresh_prices is global.
func (jm *JobManager) Enqueue(ctx context.Context, jobType, portfolioID string) (*models.Job, error) {
	if err := validateJob(jobType, portfolioID); err != nil {
		return nil, err
	}
	job := jm.newJob(jobType, portfolioID, common.ResolveUserID(ctx))
	if err := jm.enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueIfNeeded queues a job unless one of the same type is already
// pending for the portfolio. It reports whether a job was added.
func (jm *JobManager) EnqueueIfNeeded(ctx context.Context, jobType, portfolioID string) (bool, error) {
	if err := validateJob(jobType, portfolioID); err != nil {
		return false, err
	}
	exists, err := jm.storage.JobQueueStore().HasPendingJob(ctx, jobType, portfolioID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := jm.enqueue(ctx, jm.newJob(jobType, portfolioID, common.ResolveUserID(ctx))); err != nil {
		return false, err
	}
	return true, nil
}

// ListJobs returns the most recent jobs matching filter, newest first.
// Callers other than admins only ever see jobs they own.
func (jm *JobManager) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	if !common.IsAdmin(ctx) {
		filter.OwnerID = common.ResolveUserID(ctx)
	}
	jobs, err := jm.storage.JobQueueStore().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func validateJob(jobType, portfolioID string) error {
	switch jobType {
	case models.JobTypeGenerateSuggestions, models.JobTypeReconcilePortfolio:
		if portfolioID == "" {
			return fmt.Errorf("%s requires a portfolio id: %w", jobType, models.ErrInvalidArgument)
		}
	case models.JobTypeRefreshPrices:
	default:
		return fmt.Errorf("unknown job type %q: %w", jobType, models.ErrInvalidArgument)
	}
	return nil
}

func (jm *JobManager) newJob(jobType, portfolioID, ownerID string) *models.Job {
	return &models.Job{
		JobType:     jobType,
		PortfolioID: portfolioID,
		OwnerID:     ownerID,
		Priority:    models.DefaultPriority(jobType),
		Status:      models.JobStatusPending,
		CreatedAt:   time.Now(),
		MaxAttempts: jm.config.GetMaxRetries(),
	}
}

// enqueue adds a job to the queue and publishes a queued event.
func (jm *JobManager) enqueue(ctx context.Context, job *models.Job) error {
	if err := jm.storage.JobQueueStore().Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", job.JobType, err)
	}
	jm.logger.Debug().Str("job_id", job.ID).Str("job_type", job.JobType).Str("portfolio", job.PortfolioID).Msg("Job queued")
	jm.publish(ctx, models.JobEventQueued, job)
	return nil
}

// dequeue takes the highest-priority pending job and publishes a started event.
func (jm *JobManager) dequeue(ctx context.Context) (*models.Job, error) {
	job, err := jm.storage.JobQueueStore().Dequeue(ctx)
	if err != nil || job == nil {
		return job, err
	}
	jm.publish(ctx, models.JobEventStarted, job)
	return job, nil
}

// complete records the final outcome of a job and publishes it.
func (jm *JobManager) complete(ctx context.Context, job *models.Job, execErr error, durationMS int64) {
	// The processor context may already be cancelled during shutdown.
	ctx = context.WithoutCancel(ctx)
	if err := jm.storage.JobQueueStore().Complete(ctx, job.ID, execErr, durationMS); err != nil {
		jm.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to complete job in queue")
	}

	job.DurationMS = durationMS
	job.CompletedAt = time.Now()
	eventType := models.JobEventCompleted
	job.Status = models.JobStatusCompleted
	job.Error = ""
	if execErr != nil {
		eventType = models.JobEventFailed
		job.Status = models.JobStatusFailed
		job.Error = execErr.Error()
	}
	jm.publish(ctx, eventType, job)
}

func (jm *JobManager) publish(ctx context.Context, eventType string, job *models.Job) {
	if jm.events == nil {
		return
	}
	pending, _ := jm.storage.JobQueueStore().CountPending(ctx)
	c := *job
	jm.events.Publish(models.JobEvent{
		Type:      eventType,
		Job:       &c,
		Timestamp: time.Now(),
		QueueSize: pending,
	})
}
