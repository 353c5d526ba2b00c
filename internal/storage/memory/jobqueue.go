package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/google/uuid"
)

// JobQueueStore is an in-memory priority job queue.
type JobQueueStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func NewJobQueueStore() *JobQueueStore {
	return &JobQueueStore{jobs: make(map[string]*models.Job)}
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
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *job
	s.jobs[job.ID] = &c
	return nil
}

func (s *JobQueueStore) Dequeue(ctx context.Context) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.filter(func(j *models.Job) bool { return j.Status == models.JobStatusPending })
	if len(pending) == 0 {
		return nil, nil
	}
	j := s.jobs[pending[0].ID]
	j.Status = models.JobStatusRunning
	j.StartedAt = time.Now()
	j.Attempts++
	c := *j
	return &c, nil
}

func (s *JobQueueStore) Complete(ctx context.Context, id string, jobErr error, durationMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	j.Status = models.JobStatusCompleted
	j.Error = ""
	if jobErr != nil {
		j.Status = models.JobStatusFailed
		j.Error = jobErr.Error()
	}
	j.CompletedAt = time.Now()
	j.DurationMS = durationMS
	return nil
}

func (s *JobQueueStore) Requeue(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("job %s: %w", job.ID, models.ErrNotFound)
	}
	j.Status = models.JobStatusPending
	j.Error = job.Error
	j.StartedAt = time.Time{}
	return nil
}

func (s *JobQueueStore) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && j.Status == models.JobStatusPending {
		j.Status = models.JobStatusCancelled
	}
	return nil
}

func (s *JobQueueStore) List(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	var out []*models.Job
	for _, j := range s.filter(filter.Matches) {
		c := *j
		out = append(out, &c)
	}
	s.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JobQueueStore) CountPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filter(func(j *models.Job) bool { return j.Status == models.JobStatusPending })), nil
}

func (s *JobQueueStore) HasPendingJob(ctx context.Context, jobType, portfolioID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filter(func(j *models.Job) bool {
		return j.Status == models.JobStatusPending && j.JobType == jobType && j.PortfolioID == portfolioID
	})) > 0, nil
}

func (s *JobQueueStore) PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if (j.Status == models.JobStatusCompleted || j.Status == models.JobStatusFailed) && j.CompletedAt.Before(olderThan) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *JobQueueStore) ResetRunningJobs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status == models.JobStatusRunning {
			j.Status = models.JobStatusPending
			j.StartedAt = time.Time{}
			n++
		}
	}
	return n, nil
}

// filter returns matching jobs by priority descending, then age. Caller holds mu.
func (s *JobQueueStore) filter(keep func(*models.Job) bool) []*models.Job {
	var out []*models.Job
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Priority != out[b].Priority {
			return out[a].Priority > out[b].Priority
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// Compile-time check
var _ interfaces.JobQueueStore = (*JobQueueStore)(nil)
