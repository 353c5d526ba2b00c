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

// portfolioSelectFields aliases portfolio_id to id for struct mapping.
const portfolioSelectFields = `portfolio_id as id, owner_id, name, description, goal, public,
	cash_balance, initial_cash_balance, total_value, total_gain_loss, total_gain_loss_percent,
	created_at, updated_at`

// PortfolioStore implements interfaces.PortfolioStore using SurrealDB.
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{db: db, logger: logger}
}

func (s *PortfolioStore) Get(ctx context.Context, id string) (*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("portfolio", id)}

	p, err := queryOne[models.Portfolio](ctx, s.db, sql, vars)
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("portfolio %s: %w", id, models.ErrNotFound)
	}
	return p, nil
}

func (s *PortfolioStore) Save(ctx context.Context, p *models.Portfolio) error {
	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, owner_id = $owner_id, name = $name,
		description = $description, goal = $goal, public = $public,
		cash_balance = $cash_balance, initial_cash_balance = $initial_cash_balance,
		total_value = $total_value, total_gain_loss = $total_gain_loss,
		total_gain_loss_percent = $total_gain_loss_percent,
		created_at = $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":                     surrealmodels.NewRecordID("portfolio", p.ID),
		"portfolio_id":            p.ID,
		"owner_id":                p.OwnerID,
		"name":                    p.Name,
		"description":             p.Description,
		"goal":                    p.Goal,
		"public":                  p.Public,
		"cash_balance":            p.CashBalance,
		"initial_cash_balance":    p.InitialCashBalance,
		"total_value":             p.TotalValue,
		"total_gain_loss":         p.TotalGainLoss,
		"total_gain_loss_percent": p.TotalGainLossPercent,
		"created_at":              p.CreatedAt,
		"updated_at":              p.UpdatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

func (s *PortfolioStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.Portfolio](ctx, s.db, surrealmodels.NewRecordID("portfolio", id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return nil
}

func (s *PortfolioStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM portfolio WHERE owner_id = $owner ORDER BY created_at ASC"
	out, err := queryRecords[models.Portfolio](ctx, s.db, sql, map[string]any{"owner": ownerID})
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return out, nil
}

func (s *PortfolioStore) List(ctx context.Context) ([]*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM portfolio ORDER BY created_at ASC"
	out, err := queryRecords[models.Portfolio](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return out, nil
}

// Compile-time check
var _ interfaces.PortfolioStore = (*PortfolioStore)(nil)
