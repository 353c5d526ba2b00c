package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// operationSelectFields aliases op_id to id for struct mapping.
const operationSelectFields = `op_id as id, portfolio_id, kind, stage, position, source, trade,
	cash_delta, suggestion_id, position_id, trade_ids, error, created_at, updated_at, completed_at`

// OperationStore implements interfaces.OperationStore using SurrealDB.
// Planned records are embedded as objects so recovery needs no other reads.
type OperationStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewOperationStore creates a new OperationStore.
func NewOperationStore(db *surrealdb.DB, logger *common.Logger) *OperationStore {
	return &OperationStore{db: db, logger: logger}
}

func (s *OperationStore) Get(ctx context.Context, id string) (*models.LedgerOperation, error) {
	sql := "SELECT " + operationSelectFields + " FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("ledger_op", id)}

	op, err := queryOne[models.LedgerOperation](ctx, s.db, sql, vars)
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get ledger operation: %w", err)
	}
	if op == nil {
		return nil, fmt.Errorf("ledger operation %s: %w", id, models.ErrNotFound)
	}
	return op, nil
}

func (s *OperationStore) Save(ctx context.Context, op *models.LedgerOperation) error {
	sql := `UPSERT $rid SET
		op_id = $op_id, portfolio_id = $portfolio_id, kind = $kind, stage = $stage,
		position = $position, source = $source, trade = $trade, cash_delta = $cash_delta,
		suggestion_id = $suggestion_id, position_id = $position_id, trade_ids = $trade_ids,
		error = $error, created_at = $created_at, updated_at = $updated_at,
		completed_at = $completed_at`
	vars := map[string]any{
		"rid":           surrealmodels.NewRecordID("ledger_op", op.ID),
		"op_id":         op.ID,
		"portfolio_id":  op.PortfolioID,
		"kind":          string(op.Kind),
		"stage":         string(op.Stage),
		"position":      op.Position,
		"source":        op.Source,
		"trade":         op.Trade,
		"cash_delta":    op.CashDelta,
		"suggestion_id": op.SuggestionID,
		"position_id":   op.PositionID,
		"trade_ids":     op.TradeIDs,
		"error":         op.Error,
		"created_at":    op.CreatedAt,
		"updated_at":    op.UpdatedAt,
		"completed_at":  op.CompletedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save ledger operation: %w", err)
	}
	return nil
}

func (s *OperationStore) ListIncomplete(ctx context.Context, portfolioID string) ([]*models.LedgerOperation, error) {
	sql := "SELECT " + operationSelectFields + " FROM ledger_op WHERE portfolio_id = $pid AND stage NOT IN [$completed, $abandoned] ORDER BY created_at ASC"
	vars := map[string]any{
		"pid":       portfolioID,
		"completed": string(models.StageCompleted),
		"abandoned": string(models.StageAbandoned),
	}
	out, err := queryRecords[models.LedgerOperation](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete operations: %w", err)
	}
	return out, nil
}

func (s *OperationStore) PortfoliosWithIncomplete(ctx context.Context) ([]string, error) {
	type row struct {
		PortfolioID string `json:"portfolio_id"`
	}
	sql := "SELECT portfolio_id FROM ledger_op WHERE stage NOT IN [$completed, $abandoned] GROUP BY portfolio_id"
	vars := map[string]any{
		"completed": string(models.StageCompleted),
		"abandoned": string(models.StageAbandoned),
	}
	rows, err := queryRecords[row](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios with incomplete operations: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.PortfolioID)
	}
	return ids, nil
}

func (s *OperationStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error) {
	return deleteWhere(ctx, s.db, "ledger_op", "portfolio_id = $pid", map[string]any{"pid": portfolioID})
}

func (s *OperationStore) PurgeFinished(ctx context.Context, olderThan time.Time) (int, error) {
	return deleteWhere(ctx, s.db, "ledger_op", "stage IN [$completed, $abandoned] AND updated_at < $cutoff", map[string]any{
		"completed": string(models.StageCompleted),
		"abandoned": string(models.StageAbandoned),
		"cutoff":    olderThan,
	})
}

// Compile-time check
var _ interfaces.OperationStore = (*OperationStore)(nil)
