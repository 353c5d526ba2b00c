// Package suggestion manages suggested trades: manual entry, AI generation,
// conversion into ledger positions and dismissal.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/google/uuid"
)

const (
	defaultInvestment = 10000.0

	// defaultOperationTimeout bounds the wait for the portfolio lock
	defaultOperationTimeout = 30 * time.Second
)

// Service implements SuggestionService
type Service struct {
	storage    interfaces.StorageManager
	ledger     interfaces.LedgerService
	portfolios interfaces.PortfolioService
	generator  interfaces.SuggestionGenerator
	quotes     interfaces.QuoteService
	locks      *common.PortfolioLocks
	logger     *common.Logger
	investment float64
	opTimeout  time.Duration
	now        func() time.Time
}

var _ interfaces.SuggestionService = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithGenerator sets the AI generator. Without one, generation fails with
// ErrUpstreamUnavailable.
func WithGenerator(g interfaces.SuggestionGenerator) Option {
	return func(s *Service) { s.generator = g }
}

// WithQuotes sets the quote service used to price recommendations that
// arrive without an estimated price.
func WithQuotes(q interfaces.QuoteService) Option {
	return func(s *Service) { s.quotes = q }
}

// WithDefaultInvestment sets the amount suggestions are sized against when
// the portfolio holds no cash.
func WithDefaultInvestment(amount float64) Option {
	return func(s *Service) {
		if amount > 0 {
			s.investment = amount
		}
	}
}

// WithOperationTimeout bounds each suggestion mutation, lock wait included.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// NewService creates a new suggestion service
func NewService(
	storage interfaces.StorageManager,
	ledger interfaces.LedgerService,
	portfolios interfaces.PortfolioService,
	locks *common.PortfolioLocks,
	logger *common.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		storage:    storage,
		ledger:     ledger,
		portfolios: portfolios,
		locks:      locks,
		logger:     logger,
		investment: defaultInvestment,
		opTimeout:  defaultOperationTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListSuggestions returns suggestions of a portfolio newest first
func (s *Service) ListSuggestions(ctx context.Context, portfolioID string, status models.SuggestionStatus) ([]*models.SuggestedTrade, error) {
	switch status {
	case "", models.SuggestionPending, models.SuggestionConverted, models.SuggestionDismissed:
	default:
		return nil, fmt.Errorf("unknown suggestion status %q: %w", status, models.ErrInvalidArgument)
	}
	if _, err := s.portfolios.CheckAccess(ctx, portfolioID, false); err != nil {
		return nil, err
	}
	return s.storage.SuggestionStore().ListByPortfolio(ctx, portfolioID, status)
}

// GetSuggestion returns a suggestion the caller may read
func (s *Service) GetSuggestion(ctx context.Context, id string) (*models.SuggestedTrade, error) {
	return s.load(ctx, id, false)
}

func (s *Service) load(ctx context.Context, id string, write bool) (*models.SuggestedTrade, error) {
	if id == "" {
		return nil, fmt.Errorf("suggestion id is required: %w", models.ErrInvalidArgument)
	}
	sug, err := s.storage.SuggestionStore().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.portfolios.CheckAccess(ctx, sug.PortfolioID, write); err != nil {
		return nil, err
	}
	return sug, nil
}

// CreateSuggestion stores a manually entered suggestion as pending
func (s *Service) CreateSuggestion(ctx context.Context, in *models.SuggestedTrade) (*models.SuggestedTrade, error) {
	if in == nil {
		return nil, fmt.Errorf("suggestion is required: %w", models.ErrInvalidArgument)
	}
	p, err := s.portfolios.CheckAccess(ctx, in.PortfolioID, true)
	if err != nil {
		return nil, err
	}

	symbol := common.NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", models.ErrInvalidArgument)
	}
	action := models.SuggestionAction(strings.ToLower(string(in.Action)))
	if action == "" {
		action = models.ActionBuy
	}
	if action != models.ActionBuy && action != models.ActionSell {
		return nil, fmt.Errorf("unknown action %q: %w", in.Action, models.ErrInvalidArgument)
	}
	typ, ok := models.ParseInstrumentType(string(in.Type))
	if !ok {
		return nil, fmt.Errorf("unknown instrument type %q: %w", in.Type, models.ErrInvalidArgument)
	}
	if invalidAmount(in.Quantity) {
		return nil, fmt.Errorf("quantity must not be negative: %w", models.ErrInvalidQuantity)
	}
	if invalidAmount(in.EstimatedPrice) {
		return nil, fmt.Errorf("estimated price must not be negative: %w", models.ErrInvalidPrice)
	}

	now := s.now()
	sug := &models.SuggestedTrade{
		ID:                uuid.NewString(),
		PortfolioID:       p.ID,
		OwnerID:           p.OwnerID,
		Symbol:            symbol,
		Name:              strings.TrimSpace(in.Name),
		Type:              typ,
		Action:            action,
		Quantity:          in.Quantity,
		EstimatedPrice:    in.EstimatedPrice,
		AllocationPercent: in.AllocationPercent,
		Rationale:         strings.TrimSpace(in.Rationale),
		Status:            models.SuggestionPending,
		Source:            models.SuggestionSourceManual,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if sug.Name == "" {
		sug.Name = symbol
	}
	sug.Priority = in.Priority
	if sug.Priority == "" {
		sug.Priority = Priority(in.AllocationPercent)
	}
	sug.RiskLevel = in.RiskLevel
	if sug.RiskLevel == "" {
		sug.RiskLevel = RiskLevel(sug.Rationale)
	}

	if err := s.storage.SuggestionStore().Save(ctx, sug); err != nil {
		return nil, fmt.Errorf("failed to save suggestion: %w", err)
	}
	s.logger.Info().Str("portfolio", p.ID).Str("suggestion", sug.ID).Str("symbol", symbol).Msg("Suggestion created")
	return sug, nil
}

// DismissSuggestion moves a pending suggestion to dismissed. The reason is
// recorded only when given.
func (s *Service) DismissSuggestion(ctx context.Context, id string, reason string) error {
	sug, err := s.load(ctx, id, true)
	if err != nil {
		return err
	}
	ctx, unlock, err := s.lock(ctx, sug.PortfolioID)
	if err != nil {
		return err
	}
	defer unlock()

	// Re-read under the lock so a concurrent convert is seen.
	if sug, err = s.storage.SuggestionStore().Get(ctx, id); err != nil {
		return err
	}
	if err := s.dismiss(ctx, sug, reason); err != nil {
		return err
	}
	s.logger.Info().Str("portfolio", sug.PortfolioID).Str("suggestion", id).Msg("Suggestion dismissed")
	return nil
}

func (s *Service) dismiss(ctx context.Context, sug *models.SuggestedTrade, reason string) error {
	if sug.Status != models.SuggestionPending {
		return fmt.Errorf("suggestion %s is %s: %w", sug.ID, sug.Status, models.ErrInvalidStateTransition)
	}
	now := s.now()
	sug.Status = models.SuggestionDismissed
	sug.DismissedAt = &now
	if r := strings.TrimSpace(reason); r != "" {
		sug.DismissalReason = r
	}
	sug.UpdatedAt = now
	if err := s.storage.SuggestionStore().Save(ctx, sug); err != nil {
		return fmt.Errorf("failed to save suggestion: %w", err)
	}
	return nil
}

// ConvertSuggestion executes a pending suggestion through the ledger. A buy
// opens a new position; a sell closes against the oldest open position of
// the symbol. The suggestion is marked converted by the same journalled
// operation, so it stays pending when the ledger call fails outright.
func (s *Service) ConvertSuggestion(ctx context.Context, id string, overrides *models.ConvertOverrides) (*models.ConvertResult, error) {
	sug, err := s.load(ctx, id, true)
	if err != nil {
		return nil, err
	}
	ctx, unlock, err := s.lock(ctx, sug.PortfolioID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sug, err = s.storage.SuggestionStore().Get(ctx, id); err != nil {
		return nil, err
	}
	if sug.Status != models.SuggestionPending {
		return nil, fmt.Errorf("suggestion %s is %s: %w", sug.ID, sug.Status, models.ErrInvalidStateTransition)
	}
	if res, err := s.resumeConversion(ctx, sug); err != nil || res != nil {
		return res, err
	}

	if overrides == nil {
		overrides = &models.ConvertOverrides{}
	}
	quantity := sug.Quantity
	if overrides.Quantity != nil {
		quantity = *overrides.Quantity
	}
	price := sug.EstimatedPrice
	if overrides.Price != nil {
		price = *overrides.Price
	}
	var fee float64
	if overrides.Fee != nil {
		fee = *overrides.Fee
	}
	notes := "Executed from suggested trade: " + sug.Rationale
	if overrides.Notes != nil {
		notes = *overrides.Notes
	}
	var date time.Time
	if overrides.Date != nil {
		date = *overrides.Date
	}

	var res *models.LedgerResult
	switch sug.Action {
	case models.ActionBuy:
		res, err = s.ledger.OpenPosition(ctx, models.OpenPositionRequest{
			PortfolioID:  sug.PortfolioID,
			Symbol:       sug.Symbol,
			Name:         sug.Name,
			Type:         sug.Type,
			Quantity:     quantity,
			OpenPrice:    price,
			Fee:          fee,
			OpenDate:     date,
			Notes:        notes,
			Source:       models.TradeSourceSuggestion,
			SuggestionID: sug.ID,
		})
	case models.ActionSell:
		var pos *models.Position
		pos, err = s.oldestOpen(ctx, sug.PortfolioID, sug.Symbol)
		if err != nil {
			return nil, err
		}
		res, err = s.ledger.ClosePosition(ctx, models.ClosePositionRequest{
			PortfolioID:  sug.PortfolioID,
			PositionID:   pos.ID,
			ClosePrice:   price,
			Quantity:     &quantity,
			Fee:          fee,
			CloseDate:    date,
			Notes:        notes,
			Source:       models.TradeSourceSuggestion,
			SuggestionID: sug.ID,
		})
	default:
		return nil, fmt.Errorf("suggestion %s has unknown action %q: %w", sug.ID, sug.Action, models.ErrInvalidArgument)
	}
	if err != nil {
		var pf *models.PartialFailureError
		if errors.As(err, &pf) {
			s.logger.Warn().Err(err).Str("suggestion", sug.ID).Str("op", pf.OperationID).Msg("Suggestion conversion partially applied")
		}
		return nil, err
	}

	s.logger.Info().
		Str("portfolio", sug.PortfolioID).
		Str("suggestion", sug.ID).
		Str("position", res.PositionID).
		Str("trade", res.TradeID).
		Msg("Suggestion converted")
	return &models.ConvertResult{PositionID: res.PositionID, TradeID: res.TradeID}, nil
}

// resumeConversion finishes an earlier conversion of sug that failed
// partway. A nil result with no error means there was none left to finish
// and a fresh conversion may go ahead.
func (s *Service) resumeConversion(ctx context.Context, sug *models.SuggestedTrade) (*models.ConvertResult, error) {
	ops, err := s.storage.OperationStore().ListIncomplete(ctx, sug.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete operations: %w", err)
	}
	i := slices.IndexFunc(ops, func(op *models.LedgerOperation) bool { return op.SuggestionID == sug.ID })
	if i < 0 {
		return nil, nil
	}
	op := ops[i]

	s.logger.Warn().Str("suggestion", sug.ID).Str("op", op.ID).Str("stage", string(op.Stage)).Msg("Resuming unfinished conversion")
	report, err := s.ledger.RecoverPortfolio(ctx, sug.PortfolioID)
	if err != nil {
		return nil, err
	}
	if slices.Contains(report.Failed, op.ID) {
		return nil, &models.PartialFailureError{
			OperationID: op.ID,
			Stage:       op.Stage,
			Err:         fmt.Errorf("earlier conversion of suggestion %s could not be finished", sug.ID),
		}
	}

	if sug, err = s.storage.SuggestionStore().Get(ctx, sug.ID); err != nil {
		return nil, err
	}
	if sug.Status != models.SuggestionConverted {
		// The earlier attempt never wrote anything and was abandoned.
		return nil, nil
	}
	s.logger.Info().
		Str("portfolio", sug.PortfolioID).
		Str("suggestion", sug.ID).
		Str("position", sug.ConvertedPositionID).
		Str("trade", sug.ConvertedTradeID).
		Msg("Suggestion converted")
	return &models.ConvertResult{PositionID: sug.ConvertedPositionID, TradeID: sug.ConvertedTradeID}, nil
}

// lock bounds ctx by the operation timeout and takes the portfolio lock.
func (s *Service) lock(ctx context.Context, portfolioID string) (context.Context, func(), error) {
	return s.locks.LockWithin(ctx, portfolioID, s.opTimeout)
}

func (s *Service) oldestOpen(ctx context.Context, portfolioID, symbol string) (*models.Position, error) {
	open, err := s.storage.PositionStore().ListByPortfolio(ctx, portfolioID, models.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	for _, p := range open {
		if strings.EqualFold(p.Symbol, symbol) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no open position in %s: %w", symbol, models.ErrNotFound)
}

func invalidAmount(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}
