package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// QuoteStore implements interfaces.QuoteStore using SurrealDB, one record per symbol.
type QuoteStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(db *surrealdb.DB, logger *common.Logger) *QuoteStore {
	return &QuoteStore{db: db, logger: logger}
}

// symbolToID converts a symbol like "BRK.B" to a safe record ID.
func symbolToID(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), ".", "_")
}

func (s *QuoteStore) Get(ctx context.Context, symbol string) (*models.Quote, error) {
	q, err := surrealdb.Select[models.Quote](ctx, s.db, surrealmodels.NewRecordID("price_quote", symbolToID(symbol)))
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	if q == nil || q.Symbol == "" {
		return nil, fmt.Errorf("quote %s: %w", symbol, models.ErrNotFound)
	}
	return q, nil
}

func (s *QuoteStore) Save(ctx context.Context, q *models.Quote) error {
	sql := "UPSERT $rid CONTENT $quote"
	vars := map[string]any{
		"rid":   surrealmodels.NewRecordID("price_quote", symbolToID(q.Symbol)),
		"quote": q,
	}
	if _, err := surrealdb.Query[[]models.Quote](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save quote: %w", err)
	}
	return nil
}

// Compile-time check
var _ interfaces.QuoteStore = (*QuoteStore)(nil)
