package surrealdb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// positionSelectFields aliases position_id to id for struct mapping.
const positionSelectFields = `position_id as id, portfolio_id, symbol, name, type, quantity,
	open_price, current_price, close_price, open_date, close_date, status,
	total_value, gain_loss, gain_loss_percent, fees, split_from, created_at, updated_at`

// PositionStore implements interfaces.PositionStore using SurrealDB.
type PositionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(db *surrealdb.DB, logger *common.Logger) *PositionStore {
	return &PositionStore{db: db, logger: logger}
}

func (s *PositionStore) Get(ctx context.Context, id string) (*models.Position, error) {
	sql := "SELECT " + positionSelectFields + " FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("position", id)}

	p, err := queryOne[models.Position](ctx, s.db, sql, vars)
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("position %s: %w", id, models.ErrNotFound)
	}
	return p, nil
}

func (s *PositionStore) Save(ctx context.Context, p *models.Position) error {
	sql := `UPSERT $rid SET
		position_id = $position_id, portfolio_id = $portfolio_id, symbol = $symbol,
		name = $name, type = $type, quantity = $quantity, open_price = $open_price,
		current_price = $current_price, close_price = $close_price,
		open_date = $open_date, close_date = $close_date, status = $status,
		total_value = $total_value, gain_loss = $gain_loss,
		gain_loss_percent = $gain_loss_percent, fees = $fees, split_from = $split_from,
		created_at = $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":               surrealmodels.NewRecordID("position", p.ID),
		"position_id":       p.ID,
		"portfolio_id":      p.PortfolioID,
		"symbol":            p.Symbol,
		"name":              p.Name,
		"type":              string(p.Type),
		"quantity":          p.Quantity,
		"open_price":        p.OpenPrice,
		"current_price":     p.CurrentPrice,
		"close_price":       p.ClosePrice,
		"open_date":         p.OpenDate,
		"close_date":        p.CloseDate,
		"status":            string(p.Status),
		"total_value":       p.TotalValue,
		"gain_loss":         p.GainLoss,
		"gain_loss_percent": p.GainLossPercent,
		"fees":              p.Fees,
		"split_from":        p.SplitFrom,
		"created_at":        p.CreatedAt,
		"updated_at":        p.UpdatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

func (s *PositionStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.Position](ctx, s.db, surrealmodels.NewRecordID("position", id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

func (s *PositionStore) ListByPortfolio(ctx context.Context, portfolioID string, status models.PositionStatus) ([]*models.Position, error) {
	where := "portfolio_id = $pid"
	vars := map[string]any{"pid": portfolioID}
	if status != "" {
		where += " AND status = $status"
		vars["status"] = string(status)
	}
	sql := "SELECT " + positionSelectFields + " FROM position WHERE " + where + " ORDER BY open_date ASC, created_at ASC"

	out, err := queryRecords[models.Position](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return out, nil
}

func (s *PositionStore) ListOpenSymbols(ctx context.Context) ([]string, error) {
	type symbolRow struct {
		Symbol string `json:"symbol"`
	}
	sql := "SELECT symbol FROM position WHERE status = $open GROUP BY symbol"
	rows, err := queryRecords[symbolRow](ctx, s.db, sql, map[string]any{"open": string(models.PositionOpen)})
	if err != nil {
		return nil, fmt.Errorf("failed to list open symbols: %w", err)
	}

	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		sym := strings.ToUpper(r.Symbol)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (s *PositionStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error) {
	return deleteWhere(ctx, s.db, "position", "portfolio_id = $pid", map[string]any{"pid": portfolioID})
}

// Compile-time check
var _ interfaces.PositionStore = (*PositionStore)(nil)
