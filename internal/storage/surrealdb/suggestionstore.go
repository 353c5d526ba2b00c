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

// suggestionSelectFields aliases suggestion_id to id for struct mapping.
const suggestionSelectFields = `suggestion_id as id, portfolio_id, owner_id, symbol, name, type,
	action, quantity, estimated_price, priority, risk_level, allocation_percent, rationale,
	status, converted_position_id, converted_trade_id, converted_at,
	dismissal_reason, dismissed_at, source, created_at, updated_at`

// SuggestionStore implements interfaces.SuggestionStore using SurrealDB.
type SuggestionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSuggestionStore creates a new SuggestionStore.
func NewSuggestionStore(db *surrealdb.DB, logger *common.Logger) *SuggestionStore {
	return &SuggestionStore{db: db, logger: logger}
}

func (s *SuggestionStore) Get(ctx context.Context, id string) (*models.SuggestedTrade, error) {
	sql := "SELECT " + suggestionSelectFields + " FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("suggested_trade", id)}

	st, err := queryOne[models.SuggestedTrade](ctx, s.db, sql, vars)
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get suggested trade: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("suggested trade %s: %w", id, models.ErrNotFound)
	}
	return st, nil
}

func (s *SuggestionStore) Save(ctx context.Context, st *models.SuggestedTrade) error {
	sql := `UPSERT $rid SET
		suggestion_id = $suggestion_id, portfolio_id = $portfolio_id, owner_id = $owner_id,
		symbol = $symbol, name = $name, type = $type, action = $action,
		quantity = $quantity, estimated_price = $estimated_price, priority = $priority,
		risk_level = $risk_level, allocation_percent = $allocation_percent,
		rationale = $rationale, status = $status,
		converted_position_id = $converted_position_id, converted_trade_id = $converted_trade_id,
		converted_at = $converted_at, dismissal_reason = $dismissal_reason,
		dismissed_at = $dismissed_at, source = $source,
		created_at = $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":                   surrealmodels.NewRecordID("suggested_trade", st.ID),
		"suggestion_id":         st.ID,
		"portfolio_id":          st.PortfolioID,
		"owner_id":              st.OwnerID,
		"symbol":                st.Symbol,
		"name":                  st.Name,
		"type":                  string(st.Type),
		"action":                string(st.Action),
		"quantity":              st.Quantity,
		"estimated_price":       st.EstimatedPrice,
		"priority":              st.Priority,
		"risk_level":            st.RiskLevel,
		"allocation_percent":    st.AllocationPercent,
		"rationale":             st.Rationale,
		"status":                string(st.Status),
		"converted_position_id": st.ConvertedPositionID,
		"converted_trade_id":    st.ConvertedTradeID,
		"converted_at":          st.ConvertedAt,
		"dismissal_reason":      st.DismissalReason,
		"dismissed_at":          st.DismissedAt,
		"source":                st.Source,
		"created_at":            st.CreatedAt,
		"updated_at":            st.UpdatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save suggested trade: %w", err)
	}
	return nil
}

func (s *SuggestionStore) ListByPortfolio(ctx context.Context, portfolioID string, status models.SuggestionStatus) ([]*models.SuggestedTrade, error) {
	where := "portfolio_id = $pid"
	vars := map[string]any{"pid": portfolioID}
	if status != "" {
		where += " AND status = $status"
		vars["status"] = string(status)
	}
	sql := "SELECT " + suggestionSelectFields + " FROM suggested_trade WHERE " + where + " ORDER BY created_at DESC"

	out, err := queryRecords[models.SuggestedTrade](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggested trades: %w", err)
	}
	return out, nil
}

func (s *SuggestionStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error) {
	return deleteWhere(ctx, s.db, "suggested_trade", "portfolio_id = $pid", map[string]any{"pid": portfolioID})
}

// Compile-time check
var _ interfaces.SuggestionStore = (*SuggestionStore)(nil)
