// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// LedgerService runs the position lifecycle and keeps cash and aggregate
// totals consistent. Mutations are serialised per portfolio.
type LedgerService interface {
	OpenPosition(ctx context.Context, req models.OpenPositionRequest) (*models.LedgerResult, error)
	ClosePosition(ctx context.Context, req models.ClosePositionRequest) (*models.LedgerResult, error)
	DeletePosition(ctx context.Context, portfolioID, positionID string) error

	// RecalculateCashBalance replays every trade from the initial balance.
	RecalculateCashBalance(ctx context.Context, portfolioID string) (float64, error)

	// UpdatePortfolioTotals recomputes the aggregate fields from stored positions.
	UpdatePortfolioTotals(ctx context.Context, portfolioID string) (*models.PortfolioTotals, error)

	// RecoverPortfolio resumes unfinished journal entries then recomputes cash and totals.
	RecoverPortfolio(ctx context.Context, portfolioID string) (*models.RecoveryReport, error)
}

// CreatePortfolioRequest holds the fields for a new portfolio
type CreatePortfolioRequest struct {
	Name               string  `json:"name"`
	Description        string  `json:"description,omitempty"`
	Goal               string  `json:"goal,omitempty"`
	Public             bool    `json:"public"`
	InitialCashBalance float64 `json:"initial_cash_balance"`
}

// PortfolioService manages portfolios and read-side listings
type PortfolioService interface {
	CreatePortfolio(ctx context.Context, req CreatePortfolioRequest) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, id string, update models.PortfolioUpdate) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error

	// CheckAccess loads a portfolio the caller may read, or modify when write is set
	CheckAccess(ctx context.Context, id string, write bool) (*models.Portfolio, error)

	ListPositions(ctx context.Context, portfolioID string, status models.PositionStatus) ([]*models.Position, error)
	ListTrades(ctx context.Context, portfolioID string) ([]*models.Trade, error)

	// Valuation marks open positions to market without touching stored fields
	Valuation(ctx context.Context, portfolioID string) (*models.PortfolioValuation, error)
}

// SuggestionService manages suggested trades and their conversion
type SuggestionService interface {
	ListSuggestions(ctx context.Context, portfolioID string, status models.SuggestionStatus) ([]*models.SuggestedTrade, error)
	GetSuggestion(ctx context.Context, id string) (*models.SuggestedTrade, error)
	CreateSuggestion(ctx context.Context, s *models.SuggestedTrade) (*models.SuggestedTrade, error)

	ConvertSuggestion(ctx context.Context, id string, overrides *models.ConvertOverrides) (*models.ConvertResult, error)
	DismissSuggestion(ctx context.Context, id string, reason string) error

	// GenerateSuggestions asks the generator for recommendations and stores them as pending.
	GenerateSuggestions(ctx context.Context, portfolioID string) ([]*models.SuggestedTrade, error)
	// RegenerateSuggestions dismisses every pending suggestion then generates.
	RegenerateSuggestions(ctx context.Context, portfolioID string) ([]*models.SuggestedTrade, error)
}

// QuoteService resolves prices with last-known fallback
type QuoteService interface {
	GetPrice(ctx context.Context, symbol string) (*models.Quote, error)
	// RefreshHeld warms the cache for every symbol held in an open position.
	RefreshHeld(ctx context.Context) (int, error)
}

// AdvisoryService produces heuristic portfolio advice
type AdvisoryService interface {
	Advise(ctx context.Context, portfolioID string) (*models.PortfolioAdvice, error)
}

// JobManager runs queued background work
type JobManager interface {
	Start()
	Stop()
	Enqueue(ctx context.Context, jobType, portfolioID string) (*models.Job, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error)
}
