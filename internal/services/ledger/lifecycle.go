package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/pnl"
	"github.com/shopspring/decimal"
)

// quantityEpsilon absorbs float noise when comparing a close quantity
// against the held quantity.
const quantityEpsilon = 1e-9

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateOpen(req *models.OpenPositionRequest) error {
	req.Symbol = common.NormalizeSymbol(req.Symbol)
	if req.Symbol == "" {
		return fmt.Errorf("symbol is required: %w", models.ErrInvalidArgument)
	}
	t, ok := models.ParseInstrumentType(string(req.Type))
	if !ok {
		return fmt.Errorf("unknown instrument type %q: %w", req.Type, models.ErrInvalidArgument)
	}
	req.Type = t
	if !finite(req.Quantity) || req.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive (got %v): %w", req.Quantity, models.ErrInvalidQuantity)
	}
	if !finite(req.OpenPrice) || req.OpenPrice <= 0 {
		return fmt.Errorf("open price must be positive (got %v): %w", req.OpenPrice, models.ErrInvalidPrice)
	}
	if !finite(req.Fee) || req.Fee < 0 {
		return fmt.Errorf("fee must not be negative (got %v): %w", req.Fee, models.ErrInvalidArgument)
	}
	return nil
}

// OpenPosition records a buy: a new open position, its BuyToOpen trade and
// the cash it consumed.
func (s *Service) OpenPosition(ctx context.Context, req models.OpenPositionRequest) (*models.LedgerResult, error) {
	if err := validateOpen(&req); err != nil {
		return nil, err
	}

	ctx, unlock, err := s.lock(ctx, req.PortfolioID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.getPortfolio(ctx, req.PortfolioID); err != nil {
		return nil, err
	}

	now := s.now()
	openDate := req.OpenDate
	if openDate.IsZero() {
		openDate = now
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = req.Symbol
	}
	source := req.Source
	if source == "" {
		source = models.TradeSourceManual
	}

	pos := &models.Position{
		ID:           s.newID(),
		PortfolioID:  req.PortfolioID,
		Symbol:       req.Symbol,
		Name:         name,
		Type:         req.Type,
		Quantity:     req.Quantity,
		OpenPrice:    req.OpenPrice,
		CurrentPrice: req.OpenPrice,
		OpenDate:     openDate,
		Status:       models.PositionOpen,
		Fees:         req.Fee,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := pnl.Revalue(pos); err != nil {
		return nil, err
	}

	trade := &models.Trade{
		ID:          s.newID(),
		PortfolioID: req.PortfolioID,
		PositionID:  pos.ID,
		Symbol:      req.Symbol,
		Type:        models.TradeBuyToOpen,
		Quantity:    req.Quantity,
		Price:       req.OpenPrice,
		Fee:         req.Fee,
		Date:        openDate,
		Notes:       req.Notes,
		Source:      source,
		CreatedAt:   now,
	}
	delta, err := pnl.TradeCashDelta(trade.Type, trade.Price, trade.Quantity, trade.Fee)
	if err != nil {
		return nil, err
	}

	op := &models.LedgerOperation{
		ID:           s.newID(),
		PortfolioID:  req.PortfolioID,
		Kind:         models.OpOpenPosition,
		Stage:        models.StageStarted,
		Position:     pos,
		Trade:        trade,
		CashDelta:    delta,
		SuggestionID: req.SuggestionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.begin(ctx, op); err != nil {
		return nil, err
	}
	if err := s.execute(ctx, op, false); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("portfolio", req.PortfolioID).
		Str("position", pos.ID).
		Str("trade", trade.ID).
		Str("symbol", pos.Symbol).
		Float64("quantity", pos.Quantity).
		Float64("price", pos.OpenPrice).
		Msg("Position opened")

	return &models.LedgerResult{OperationID: op.ID, PositionID: pos.ID, TradeID: trade.ID}, nil
}

// ClosePosition records a sell against an open position. Closing the full
// quantity closes the position in place; closing less splits off a closed
// slice carrying the original open price and date and shrinks the original.
func (s *Service) ClosePosition(ctx context.Context, req models.ClosePositionRequest) (*models.LedgerResult, error) {
	if !finite(req.ClosePrice) || req.ClosePrice <= 0 {
		return nil, fmt.Errorf("close price must be positive (got %v): %w", req.ClosePrice, models.ErrInvalidPrice)
	}
	if !finite(req.Fee) || req.Fee < 0 {
		return nil, fmt.Errorf("fee must not be negative (got %v): %w", req.Fee, models.ErrInvalidArgument)
	}

	ctx, unlock, err := s.lock(ctx, req.PortfolioID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.getPortfolio(ctx, req.PortfolioID); err != nil {
		return nil, err
	}
	orig, err := s.getPosition(ctx, req.PortfolioID, req.PositionID)
	if err != nil {
		return nil, err
	}
	if !orig.IsOpen() {
		return nil, fmt.Errorf("position %s is already closed: %w", orig.ID, models.ErrInvalidArgument)
	}

	qty := orig.Quantity
	if req.Quantity != nil {
		qty = *req.Quantity
		if !finite(qty) || qty <= 0 || qty > orig.Quantity+quantityEpsilon {
			return nil, fmt.Errorf("close quantity %v outside (0, %v]: %w", qty, orig.Quantity, models.ErrInvalidQuantity)
		}
	}
	full := math.Abs(orig.Quantity-qty) <= quantityEpsilon
	if full {
		qty = orig.Quantity
	}

	now := s.now()
	closeDate := req.CloseDate
	if closeDate.IsZero() {
		closeDate = now
	}
	source := req.Source
	if source == "" {
		source = models.TradeSourceManual
	}

	var closed, shrunk *models.Position
	if full {
		closed = clonePosition(orig)
		closed.Fees = decimal.NewFromFloat(orig.Fees).Add(decimal.NewFromFloat(req.Fee)).InexactFloat64()
	} else {
		closed = &models.Position{
			ID:          s.newID(),
			PortfolioID: orig.PortfolioID,
			Symbol:      orig.Symbol,
			Name:        orig.Name,
			Type:        orig.Type,
			Quantity:    qty,
			OpenPrice:   orig.OpenPrice,
			OpenDate:    orig.OpenDate,
			Fees:        req.Fee,
			SplitFrom:   orig.ID,
			CreatedAt:   now,
		}

		shrunk = clonePosition(orig)
		shrunk.Quantity = decimal.NewFromFloat(orig.Quantity).Sub(decimal.NewFromFloat(qty)).InexactFloat64()
		shrunk.UpdatedAt = now
		if err := pnl.Revalue(shrunk); err != nil {
			return nil, err
		}
	}
	closed.Status = models.PositionClosed
	closed.CurrentPrice = req.ClosePrice
	closed.ClosePrice = req.ClosePrice
	closed.CloseDate = &closeDate
	closed.UpdatedAt = now
	if err := pnl.Revalue(closed); err != nil {
		return nil, err
	}

	trade := &models.Trade{
		ID:          s.newID(),
		PortfolioID: req.PortfolioID,
		PositionID:  closed.ID,
		Symbol:      orig.Symbol,
		Type:        models.TradeSellToClose,
		Quantity:    qty,
		Price:       req.ClosePrice,
		Fee:         req.Fee,
		Date:        closeDate,
		Notes:       req.Notes,
		Source:      source,
		CreatedAt:   now,
	}
	delta, err := pnl.TradeCashDelta(trade.Type, trade.Price, trade.Quantity, trade.Fee)
	if err != nil {
		return nil, err
	}

	op := &models.LedgerOperation{
		ID:           s.newID(),
		PortfolioID:  req.PortfolioID,
		Kind:         models.OpClosePosition,
		Stage:        models.StageStarted,
		Position:     closed,
		Source:       shrunk,
		Trade:        trade,
		CashDelta:    delta,
		SuggestionID: req.SuggestionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.begin(ctx, op); err != nil {
		return nil, err
	}
	if err := s.execute(ctx, op, false); err != nil {
		return nil, err
	}

	event := s.logger.Info().
		Str("portfolio", req.PortfolioID).
		Str("position", closed.ID).
		Str("trade", trade.ID).
		Float64("quantity", qty).
		Float64("price", req.ClosePrice).
		Float64("gain_loss", closed.GainLoss)
	if shrunk != nil {
		event = event.Str("split_from", orig.ID).Float64("remaining", shrunk.Quantity)
	}
	event.Msg("Position closed")

	return &models.LedgerResult{OperationID: op.ID, PositionID: closed.ID, TradeID: trade.ID}, nil
}

// DeletePosition removes a position and every trade linked to it, then
// replays cash from the remaining trades.
func (s *Service) DeletePosition(ctx context.Context, portfolioID, positionID string) error {
	ctx, unlock, err := s.lock(ctx, portfolioID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.getPortfolio(ctx, portfolioID); err != nil {
		return err
	}
	pos, err := s.getPosition(ctx, portfolioID, positionID)
	if err != nil {
		return err
	}

	trades, err := s.storage.TradeStore().ListByPosition(ctx, pos.ID)
	if err != nil {
		return fmt.Errorf("failed to list trades of position %s: %w", pos.ID, err)
	}
	tradeIDs := make([]string, 0, len(trades))
	for _, t := range trades {
		tradeIDs = append(tradeIDs, t.ID)
	}

	now := s.now()
	op := &models.LedgerOperation{
		ID:          s.newID(),
		PortfolioID: portfolioID,
		Kind:        models.OpDeletePosition,
		Stage:       models.StageStarted,
		PositionID:  pos.ID,
		TradeIDs:    tradeIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.begin(ctx, op); err != nil {
		return err
	}
	if err := s.execute(ctx, op, false); err != nil {
		return err
	}

	s.logger.Info().
		Str("portfolio", portfolioID).
		Str("position", pos.ID).
		Int("trades", len(tradeIDs)).
		Msg("Position deleted")
	return nil
}

func clonePosition(p *models.Position) *models.Position {
	c := *p
	if p.CloseDate != nil {
		t := *p.CloseDate
		c.CloseDate = &t
	}
	return &c
}
