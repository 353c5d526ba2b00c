package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const jobTable = "job_queue"

// dequeueAttempts bounds how many candidates one Dequeue call tries to
// claim when other processors win the race for the head of the queue.
const dequeueAttempts = 3

// jobRecord is the stored shape of a job. The record id is the job id;
// job_id is kept as a plain field so SELECT can map it back without
// unwrapping the record id.
type jobRecord struct {
	JobID       string    `json:"job_id"`
	JobType     string    `json:"job_type"`
	PortfolioID string    `json:"portfolio_id"`
	OwnerID     string    `json:"owner_id"`
	Priority    int       `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	DurationMS  int64     `json:"duration_ms"`
}

func newJobRecord(j *models.Job) jobRecord {
	return jobRecord{
		JobID:       j.ID,
		JobType:     j.JobType,
		PortfolioID: j.PortfolioID,
		OwnerID:     j.OwnerID,
		Priority:    j.Priority,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Error:       j.Error,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		DurationMS:  j.DurationMS,
	}
}

func (r *jobRecord) job() *models.Job {
	return &models.Job{
		ID:          r.JobID,
		JobType:     r.JobType,
		PortfolioID: r.PortfolioID,
		OwnerID:     r.OwnerID,
		Priority:    r.Priority,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
		DurationMS:  r.DurationMS,
	}
}

func jobRID(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(jobTable, id)
}

// JobQueueStore implements interfaces.JobQueueStore using SurrealDB.
type JobQueueStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewJobQueueStore creates a new JobQueueStore.
func NewJobQueueStore(db *surrealdb.DB, logger *common.Logger) *JobQueueStore {
	return &JobQueueStore{db: db, logger: logger}
}

func (s *JobQueueStore) Enqueue(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()[:8]
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}

	vars := map[string]any{"rid": jobRID(job.ID), "job": newJobRecord(job)}
	if _, err := surrealdb.Query[[]jobRecord](ctx, s.db, "UPSERT $rid CONTENT $job", vars); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue claims the highest-priority, oldest pending job. The claim is a
// conditional update, so a candidate taken by another processor between
// the select and the update is skipped.
func (s *JobQueueStore) Dequeue(ctx context.Context) (*models.Job, error) {
	selectSQL := "SELECT * FROM " + jobTable + " WHERE status = $pending ORDER BY priority DESC, created_at ASC LIMIT $n"
	candidates, err := queryRecords[jobRecord](ctx, s.db, selectSQL, map[string]any{
		"pending": models.JobStatusPending,
		"n":       dequeueAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select pending jobs: %w", err)
	}

	for _, c := range candidates {
		now := time.Now()
		claimSQL := "UPDATE $rid SET status = $running, started_at = $now, attempts += 1 WHERE status = $pending RETURN AFTER"
		claimed, err := queryOne[jobRecord](ctx, s.db, claimSQL, map[string]any{
			"rid":     jobRID(c.JobID),
			"running": models.JobStatusRunning,
			"pending": models.JobStatusPending,
			"now":     now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", c.JobID, err)
		}
		if claimed != nil {
			return claimed.job(), nil
		}
		s.logger.Debug().Str("job_id", c.JobID).Msg("Job claimed elsewhere, trying next")
	}
	return nil, nil
}

func (s *JobQueueStore) Complete(ctx context.Context, id string, jobErr error, durationMS int64) error {
	status, msg := models.JobStatusCompleted, ""
	if jobErr != nil {
		status, msg = models.JobStatusFailed, jobErr.Error()
	}
	return s.update(ctx, id, "status = $status, completed_at = $now, error = $error, duration_ms = $dur", "", map[string]any{
		"status": status,
		"now":    time.Now(),
		"error":  msg,
		"dur":    durationMS,
	})
}

// Requeue returns a running job to pending. The attempt counter is kept so
// the retry limit still applies.
func (s *JobQueueStore) Requeue(ctx context.Context, job *models.Job) error {
	return s.update(ctx, job.ID, "status = $pending, started_at = NONE, error = $error", "", map[string]any{
		"pending": models.JobStatusPending,
		"error":   job.Error,
	})
}

// Cancel marks a pending job cancelled; jobs already running are left alone.
func (s *JobQueueStore) Cancel(ctx context.Context, id string) error {
	return s.update(ctx, id, "status = $cancelled", "status = $pending", map[string]any{
		"cancelled": models.JobStatusCancelled,
		"pending":   models.JobStatusPending,
	})
}

func (s *JobQueueStore) update(ctx context.Context, id, set, where string, vars map[string]any) error {
	sql := "UPDATE $rid SET " + set
	if where != "" {
		sql += " WHERE " + where
	}
	vars["rid"] = jobRID(id)
	if _, err := surrealdb.Query[[]jobRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return nil
}

func (s *JobQueueStore) List(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var conds []string
	vars := map[string]any{"limit": limit}
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = $owner")
		vars["owner"] = filter.OwnerID
	}
	if filter.PortfolioID != "" {
		conds = append(conds, "portfolio_id = $pid")
		vars["pid"] = filter.PortfolioID
	}
	if filter.Status != "" {
		conds = append(conds, "status = $status")
		vars["status"] = filter.Status
	}

	sql := "SELECT * FROM " + jobTable
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY created_at DESC LIMIT $limit"

	rows, err := queryRecords[jobRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	jobs := make([]*models.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.job())
	}
	return jobs, nil
}

func (s *JobQueueStore) CountPending(ctx context.Context) (int, error) {
	return s.count(ctx, "status = $pending", map[string]any{"pending": models.JobStatusPending})
}

func (s *JobQueueStore) HasPendingJob(ctx context.Context, jobType, portfolioID string) (bool, error) {
	n, err := s.count(ctx, "job_type = $type AND portfolio_id = $pid AND status = $pending", map[string]any{
		"type":    jobType,
		"pid":     portfolioID,
		"pending": models.JobStatusPending,
	})
	return n > 0, err
}

type countRow struct {
	Cnt int `json:"cnt"`
}

func (s *JobQueueStore) count(ctx context.Context, where string, vars map[string]any) (int, error) {
	row, err := queryOne[countRow](ctx, s.db, "SELECT count() AS cnt FROM "+jobTable+" WHERE "+where+" GROUP ALL", vars)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	if row == nil {
		return 0, nil
	}
	return row.Cnt, nil
}

func (s *JobQueueStore) PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	return deleteWhere(ctx, s.db, jobTable, "status IN [$completed, $failed] AND completed_at < $cutoff", map[string]any{
		"completed": models.JobStatusCompleted,
		"failed":    models.JobStatusFailed,
		"cutoff":    olderThan,
	})
}

// ResetRunningJobs puts jobs left running by a previous process back in
// the queue and returns how many there were.
func (s *JobQueueStore) ResetRunningJobs(ctx context.Context) (int, error) {
	rows, err := queryRecords[jobRecord](ctx, s.db, "UPDATE "+jobTable+" SET status = $pending, started_at = NONE WHERE status = $running RETURN AFTER", map[string]any{
		"pending": models.JobStatusPending,
		"running": models.JobStatusRunning,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset running jobs: %w", err)
	}
	return len(rows), nil
}

// Compile-time check
var _ interfaces.JobQueueStore = (*JobQueueStore)(nil)
