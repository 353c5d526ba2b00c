package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/surrealdb/surrealdb.go"
)

// tables holds every table the stores use. SurrealDB v3 errors on querying
// tables that do not exist yet.
var tables = []string{"portfolio", "position", "trade", "suggested_trade", "ledger_op", "price_quote", "job_queue"}

// indexes speeds the per-portfolio lookups and the trade cascade.
var indexes = []string{
	"DEFINE INDEX IF NOT EXISTS idx_portfolio_owner ON portfolio FIELDS owner_id",
	"DEFINE INDEX IF NOT EXISTS idx_position_portfolio ON position FIELDS portfolio_id",
	"DEFINE INDEX IF NOT EXISTS idx_trade_portfolio ON trade FIELDS portfolio_id",
	"DEFINE INDEX IF NOT EXISTS idx_trade_position ON trade FIELDS position_id",
	"DEFINE INDEX IF NOT EXISTS idx_suggestion_portfolio ON suggested_trade FIELDS portfolio_id, status",
	"DEFINE INDEX IF NOT EXISTS idx_ledger_op_portfolio ON ledger_op FIELDS portfolio_id, stage",
}

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	portfolioStore  *PortfolioStore
	positionStore   *PositionStore
	tradeStore      *TradeStore
	suggestionStore *SuggestionStore
	operationStore  *OperationStore
	quoteStore      *QuoteStore
	jobQueueStore   *JobQueueStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineSchema(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}

	m := newManager(db, logger)

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func newManager(db *surrealdb.DB, logger *common.Logger) *Manager {
	return &Manager{
		db:              db,
		logger:          logger,
		portfolioStore:  NewPortfolioStore(db, logger),
		positionStore:   NewPositionStore(db, logger),
		tradeStore:      NewTradeStore(db, logger),
		suggestionStore: NewSuggestionStore(db, logger),
		operationStore:  NewOperationStore(db, logger),
		quoteStore:      NewQuoteStore(db, logger),
		jobQueueStore:   NewJobQueueStore(db, logger),
	}
}

func defineSchema(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	for _, sql := range indexes {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define index: %w", err)
		}
	}
	return nil
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolioStore
}

func (m *Manager) PositionStore() interfaces.PositionStore {
	return m.positionStore
}

func (m *Manager) TradeStore() interfaces.TradeStore {
	return m.tradeStore
}

func (m *Manager) SuggestionStore() interfaces.SuggestionStore {
	return m.suggestionStore
}

func (m *Manager) OperationStore() interfaces.OperationStore {
	return m.operationStore
}

func (m *Manager) QuoteStore() interfaces.QuoteStore {
	return m.quoteStore
}

func (m *Manager) JobQueueStore() interfaces.JobQueueStore {
	return m.jobQueueStore
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
