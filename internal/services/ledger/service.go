// Package ledger runs the position lifecycle: opening, closing and deleting
// positions while keeping the trade log, cash balance and portfolio totals
// consistent with each other.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/google/uuid"
)

const (
	defaultOperationTimeout = 30 * time.Second

	// bookkeepingTimeout bounds journal writes made after the caller's
	// context has already failed.
	bookkeepingTimeout = 5 * time.Second
)

// Service implements interfaces.LedgerService
type Service struct {
	storage   interfaces.StorageManager
	locks     *common.PortfolioLocks
	logger    *common.Logger
	opTimeout time.Duration
	now       func() time.Time
	newID     func() string
}

var _ interfaces.LedgerService = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithOperationTimeout bounds each lifecycle operation, lock wait included
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new ledger service. locks must be shared with every
// other service that mutates portfolios.
func NewService(storage interfaces.StorageManager, locks *common.PortfolioLocks, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		storage:   storage,
		locks:     locks,
		logger:    logger,
		opTimeout: defaultOperationTimeout,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock bounds ctx by the operation timeout and takes the portfolio lock.
func (s *Service) lock(ctx context.Context, portfolioID string) (context.Context, func(), error) {
	return s.locks.LockWithin(ctx, portfolioID, s.opTimeout)
}

func (s *Service) getPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	if portfolioID == "" {
		return nil, fmt.Errorf("portfolio id is required: %w", models.ErrInvalidArgument)
	}
	p, err := s.storage.PortfolioStore().Get(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("portfolio %s: %w", portfolioID, err)
	}
	return p, nil
}

// getPosition loads a position and checks it belongs to the portfolio.
// A position of another portfolio is reported as not found.
func (s *Service) getPosition(ctx context.Context, portfolioID, positionID string) (*models.Position, error) {
	if positionID == "" {
		return nil, fmt.Errorf("position id is required: %w", models.ErrInvalidArgument)
	}
	pos, err := s.storage.PositionStore().Get(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", positionID, err)
	}
	if pos.PortfolioID != portfolioID {
		return nil, fmt.Errorf("position %s in portfolio %s: %w", positionID, portfolioID, models.ErrNotFound)
	}
	return pos, nil
}
