package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// tradeSelectFields aliases trade_id to id for struct mapping.
const tradeSelectFields = `trade_id as id, portfolio_id, position_id, symbol, type, quantity,
	price, fee, date, notes, source, created_at`

// TradeStore implements interfaces.TradeStore using SurrealDB.
// Trades are written once; position_id is indexed for cascades.
type TradeStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(db *surrealdb.DB, logger *common.Logger) *TradeStore {
	return &TradeStore{db: db, logger: logger}
}

func (s *TradeStore) Create(ctx context.Context, t *models.Trade) error {
	existing, err := s.Get(ctx, t.ID)
	if err == nil && existing != nil {
		return nil
	}

	sql := `CREATE $rid SET
		trade_id = $trade_id, portfolio_id = $portfolio_id, position_id = $position_id,
		symbol = $symbol, type = $type, quantity = $quantity, price = $price,
		fee = $fee, date = $date, notes = $notes, source = $source, created_at = $created_at`
	vars := map[string]any{
		"rid":          surrealmodels.NewRecordID("trade", t.ID),
		"trade_id":     t.ID,
		"portfolio_id": t.PortfolioID,
		"position_id":  t.PositionID,
		"symbol":       t.Symbol,
		"type":         string(t.Type),
		"quantity":     t.Quantity,
		"price":        t.Price,
		"fee":          t.Fee,
		"date":         t.Date,
		"notes":        t.Notes,
		"source":       t.Source,
		"created_at":   t.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

func (s *TradeStore) Get(ctx context.Context, id string) (*models.Trade, error) {
	sql := "SELECT " + tradeSelectFields + " FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("trade", id)}

	t, err := queryOne[models.Trade](ctx, s.db, sql, vars)
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("trade %s: %w", id, models.ErrNotFound)
	}
	return t, nil
}

func (s *TradeStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.Trade](ctx, s.db, surrealmodels.NewRecordID("trade", id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	return nil
}

func (s *TradeStore) ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.Trade, error) {
	sql := "SELECT " + tradeSelectFields + " FROM trade WHERE portfolio_id = $pid ORDER BY date ASC, created_at ASC"
	out, err := queryRecords[models.Trade](ctx, s.db, sql, map[string]any{"pid": portfolioID})
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return out, nil
}

func (s *TradeStore) ListByPosition(ctx context.Context, positionID string) ([]*models.Trade, error) {
	sql := "SELECT " + tradeSelectFields + " FROM trade WHERE position_id = $pos ORDER BY date ASC, created_at ASC"
	out, err := queryRecords[models.Trade](ctx, s.db, sql, map[string]any{"pos": positionID})
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for position: %w", err)
	}
	return out, nil
}

func (s *TradeStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error) {
	return deleteWhere(ctx, s.db, "trade", "portfolio_id = $pid", map[string]any{"pid": portfolioID})
}

// Compile-time check
var _ interfaces.TradeStore = (*TradeStore)(nil)
