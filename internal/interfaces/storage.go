// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// StorageManager coordinates all stores of one backend
type StorageManager interface {
	PortfolioStore() PortfolioStore
	PositionStore() PositionStore
	TradeStore() TradeStore
	SuggestionStore() SuggestionStore
	OperationStore() OperationStore
	QuoteStore() QuoteStore
	JobQueueStore() JobQueueStore

	// Lifecycle
	Close() error
}

// Get methods of every store return an error wrapping models.ErrNotFound
// when the record is absent.

// PortfolioStore persists portfolios
type PortfolioStore interface {
	Get(ctx context.Context, id string) (*models.Portfolio, error)
	Save(ctx context.Context, p *models.Portfolio) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Portfolio, error)
	List(ctx context.Context) ([]*models.Portfolio, error)
}

// PositionStore persists positions
type PositionStore interface {
	Get(ctx context.Context, id string) (*models.Position, error)
	Save(ctx context.Context, p *models.Position) error
	Delete(ctx context.Context, id string) error
	// ListByPortfolio returns positions ordered by open date ascending.
	// An empty status returns all positions.
	ListByPortfolio(ctx context.Context, portfolioID string, status models.PositionStatus) ([]*models.Position, error)
	// ListOpenSymbols returns the distinct symbols held by any open position.
	ListOpenSymbols(ctx context.Context) ([]string, error)
	DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error)
}

// TradeStore persists the append-only trade log. Create with an existing
// id is a no-op so journal replays stay idempotent.
type TradeStore interface {
	Create(ctx context.Context, t *models.Trade) error
	Get(ctx context.Context, id string) (*models.Trade, error)
	Delete(ctx context.Context, id string) error
	// ListByPortfolio returns trades ordered by date then creation time.
	ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.Trade, error)
	ListByPosition(ctx context.Context, positionID string) ([]*models.Trade, error)
	DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error)
}

// SuggestionStore persists suggested trades
type SuggestionStore interface {
	Get(ctx context.Context, id string) (*models.SuggestedTrade, error)
	Save(ctx context.Context, s *models.SuggestedTrade) error
	// ListByPortfolio returns suggestions newest first. An empty status returns all.
	ListByPortfolio(ctx context.Context, portfolioID string, status models.SuggestionStatus) ([]*models.SuggestedTrade, error)
	DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error)
}

// OperationStore persists the ledger operation journal
type OperationStore interface {
	Get(ctx context.Context, id string) (*models.LedgerOperation, error)
	Save(ctx context.Context, op *models.LedgerOperation) error
	// ListIncomplete returns unfinished operations of a portfolio, oldest first.
	ListIncomplete(ctx context.Context, portfolioID string) ([]*models.LedgerOperation, error)
	// PortfoliosWithIncomplete returns the ids of portfolios with unfinished operations.
	PortfoliosWithIncomplete(ctx context.Context) ([]string, error)
	DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error)
	// PurgeFinished deletes finished operations last updated before olderThan.
	PurgeFinished(ctx context.Context, olderThan time.Time) (int, error)
}

// QuoteStore caches the last known quote per symbol
type QuoteStore interface {
	Get(ctx context.Context, symbol string) (*models.Quote, error)
	Save(ctx context.Context, q *models.Quote) error
}

// JobQueueStore manages the persistent job queue
type JobQueueStore interface {
	Enqueue(ctx context.Context, job *models.Job) error
	Dequeue(ctx context.Context) (*models.Job, error) // get highest priority pending, set to running; nil when empty
	Complete(ctx context.Context, id string, jobErr error, durationMS int64) error
	Requeue(ctx context.Context, job *models.Job) error
	Cancel(ctx context.Context, id string) error
	List(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) // newest first
	CountPending(ctx context.Context) (int, error)
	HasPendingJob(ctx context.Context, jobType, portfolioID string) (bool, error)
	PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error)
	ResetRunningJobs(ctx context.Context) (int, error)
}
