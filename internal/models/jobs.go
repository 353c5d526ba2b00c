package models

import "time"

// Job represents a unit of work in the job queue.
type Job struct {
	ID          string    `json:"id"`
	JobType     string    `json:"job_type"`
	PortfolioID string    `json:"portfolio_id"` // empty for global jobs
	OwnerID     string    `json:"owner_id"`
	Priority    int       `json:"priority"`
	Status      string    `json:"status"` // "pending", "running", "completed", "failed", "cancelled"
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	DurationMS  int64     `json:"duration_ms"`
}

// JobFilter narrows a job listing. Empty fields match everything.
type JobFilter struct {
	OwnerID     string
	PortfolioID string
	Status      string
	Limit       int // defaults to 100
}

// Matches reports whether the job satisfies every set field of the filter.
func (f JobFilter) Matches(j *Job) bool {
	if f.OwnerID != "" && j.OwnerID != f.OwnerID {
		return false
	}
	if f.PortfolioID != "" && j.PortfolioID != f.PortfolioID {
		return false
	}
	return f.Status == "" || j.Status == f.Status
}

// Job type constants
const (
	JobTypeGenerateSuggestions = "generate_suggestions"
	JobTypeReconcilePortfolio  = "reconcile_portfolio"
	JobTypeRefreshPrices       = "refresh_prices"
)

// Job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Default priorities (higher = processed first)
const (
	PriorityReconcilePortfolio  = 10
	PriorityGenerateSuggestions = 5
	PriorityRefreshPrices       = 3
)

// DefaultPriority returns the default priority for a job type.
func DefaultPriority(jobType string) int {
	switch jobType {
	case JobTypeReconcilePortfolio:
		return PriorityReconcilePortfolio
	case JobTypeGenerateSuggestions:
		return PriorityGenerateSuggestions
	case JobTypeRefreshPrices:
		return PriorityRefreshPrices
	default:
		return 0
	}
}

// Job event types
const (
	JobEventQueued    = "job_queued"
	JobEventStarted   = "job_started"
	JobEventCompleted = "job_completed"
	JobEventFailed    = "job_failed"
)

// JobEvent is pushed to subscribers when a job changes state.
type JobEvent struct {
	Type      string    `json:"type"`
	Job       *Job      `json:"job"`
	Timestamp time.Time `json:"timestamp"`
	QueueSize int       `json:"queue_size"` // pending jobs after the change
}
