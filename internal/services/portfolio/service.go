// Package portfolio provides portfolio management and read-side listings
package portfolio

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/google/uuid"
)

// defaultOperationTimeout bounds the wait for the portfolio lock
const defaultOperationTimeout = 30 * time.Second

// Service implements PortfolioService
type Service struct {
	storage   interfaces.StorageManager
	quotes    interfaces.QuoteService
	locks     *common.PortfolioLocks
	logger    *common.Logger
	opTimeout time.Duration
}

var _ interfaces.PortfolioService = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithOperationTimeout bounds updates and deletes, lock wait included.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// NewService creates a new portfolio service. quotes may be nil, in which
// case valuations use stored prices.
func NewService(
	storage interfaces.StorageManager,
	quotes interfaces.QuoteService,
	locks *common.PortfolioLocks,
	logger *common.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		storage:   storage,
		quotes:    quotes,
		locks:     locks,
		logger:    logger,
		opTimeout: defaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePortfolio creates a portfolio owned by the caller with its cash
// balance set to the initial balance.
func (s *Service) CreatePortfolio(ctx context.Context, req interfaces.CreatePortfolioRequest) (*models.Portfolio, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("portfolio name is required: %w", models.ErrInvalidArgument)
	}
	if math.IsNaN(req.InitialCashBalance) || math.IsInf(req.InitialCashBalance, 0) || req.InitialCashBalance < 0 {
		return nil, fmt.Errorf("initial cash balance must not be negative: %w", models.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	p := &models.Portfolio{
		ID:                 uuid.NewString(),
		OwnerID:            common.ResolveUserID(ctx),
		Name:               name,
		Description:        strings.TrimSpace(req.Description),
		Goal:               strings.TrimSpace(req.Goal),
		Public:             req.Public,
		CashBalance:        req.InitialCashBalance,
		InitialCashBalance: req.InitialCashBalance,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.storage.PortfolioStore().Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}

	s.logger.Info().Str("portfolio", p.ID).Str("owner", p.OwnerID).Float64("initial_cash", p.InitialCashBalance).Msg("Portfolio created")
	return p, nil
}

// CheckAccess returns the portfolio if the caller may use it. Owners and
// admins may read and write; anyone may read a public portfolio.
func (s *Service) CheckAccess(ctx context.Context, id string, write bool) (*models.Portfolio, error) {
	if id == "" {
		return nil, fmt.Errorf("portfolio id is required: %w", models.ErrInvalidArgument)
	}
	p, err := s.storage.PortfolioStore().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if common.Owns(ctx, p.OwnerID) {
		return p, nil
	}
	if !write && p.Public {
		return p, nil
	}
	return nil, fmt.Errorf("portfolio %s: %w", id, models.ErrForbidden)
}

// GetPortfolio returns a portfolio the caller may read
func (s *Service) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	return s.CheckAccess(ctx, id, false)
}

// ListPortfolios returns the caller's portfolios
func (s *Service) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	return s.storage.PortfolioStore().ListByOwner(ctx, common.ResolveUserID(ctx))
}

// UpdatePortfolio changes the descriptive fields. Cash, the initial balance
// and the aggregates are not editable.
func (s *Service) UpdatePortfolio(ctx context.Context, id string, update models.PortfolioUpdate) (*models.Portfolio, error) {
	ctx, unlock, err := s.locks.LockWithin(ctx, id, s.opTimeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.CheckAccess(ctx, id, true)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, fmt.Errorf("portfolio name must not be empty: %w", models.ErrInvalidArgument)
		}
		p.Name = name
	}
	if update.Description != nil {
		p.Description = strings.TrimSpace(*update.Description)
	}
	if update.Goal != nil {
		p.Goal = strings.TrimSpace(*update.Goal)
	}
	if update.Public != nil {
		p.Public = *update.Public
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.storage.PortfolioStore().Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}
	return p, nil
}

// DeletePortfolio removes the portfolio together with its positions,
// trades, suggestions and journal. The portfolio record goes last so an
// interrupted delete can simply be retried.
func (s *Service) DeletePortfolio(ctx context.Context, id string) error {
	ctx, unlock, err := s.locks.LockWithin(ctx, id, s.opTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.CheckAccess(ctx, id, true); err != nil {
		return err
	}

	cascade := []struct {
		name string
		del  func(context.Context, string) (int, error)
	}{
		{"trades", s.storage.TradeStore().DeleteByPortfolio},
		{"positions", s.storage.PositionStore().DeleteByPortfolio},
		{"suggestions", s.storage.SuggestionStore().DeleteByPortfolio},
		{"operations", s.storage.OperationStore().DeleteByPortfolio},
	}

	event := s.logger.Info().Str("portfolio", id)
	for _, c := range cascade {
		n, err := c.del(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to delete %s of portfolio %s: %w", c.name, id, err)
		}
		event = event.Int(c.name, n)
	}

	if err := s.storage.PortfolioStore().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
	}
	event.Msg("Portfolio deleted")
	return nil
}

// ListPositions returns positions ordered by open date. An empty status
// returns open and closed positions.
func (s *Service) ListPositions(ctx context.Context, portfolioID string, status models.PositionStatus) ([]*models.Position, error) {
	switch status {
	case "", models.PositionOpen, models.PositionClosed:
	default:
		return nil, fmt.Errorf("unknown position status %q: %w", status, models.ErrInvalidArgument)
	}
	if _, err := s.CheckAccess(ctx, portfolioID, false); err != nil {
		return nil, err
	}
	return s.storage.PositionStore().ListByPortfolio(ctx, portfolioID, status)
}

// ListTrades returns the trade log ordered by date
func (s *Service) ListTrades(ctx context.Context, portfolioID string) ([]*models.Trade, error) {
	if _, err := s.CheckAccess(ctx, portfolioID, false); err != nil {
		return nil, err
	}
	return s.storage.TradeStore().ListByPortfolio(ctx, portfolioID)
}
