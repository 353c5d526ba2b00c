// Package memory implements interfaces.StorageManager with in-process maps.
// It backs development runs and service tests; nothing survives a restart.
package memory

import (
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// Manager implements interfaces.StorageManager in memory.
type Manager struct {
	logger *common.Logger

	portfolios  *PortfolioStore
	positions   *PositionStore
	trades      *TradeStore
	suggestions *SuggestionStore
	operations  *OperationStore
	quotes      *QuoteStore
	jobs        *JobQueueStore
}

// NewManager creates an empty in-memory storage manager.
func NewManager(logger *common.Logger) *Manager {
	logger.Info().Msg("In-memory storage manager initialized")
	return &Manager{
		logger:      logger,
		portfolios:  NewPortfolioStore(),
		positions:   NewPositionStore(),
		trades:      NewTradeStore(),
		suggestions: NewSuggestionStore(),
		operations:  NewOperationStore(),
		quotes:      NewQuoteStore(),
		jobs:        NewJobQueueStore(),
	}
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolios
}

func (m *Manager) PositionStore() interfaces.PositionStore {
	return m.positions
}

func (m *Manager) TradeStore() interfaces.TradeStore {
	return m.trades
}

func (m *Manager) SuggestionStore() interfaces.SuggestionStore {
	return m.suggestions
}

func (m *Manager) OperationStore() interfaces.OperationStore {
	return m.operations
}

func (m *Manager) QuoteStore() interfaces.QuoteStore {
	return m.quotes
}

func (m *Manager) JobQueueStore() interfaces.JobQueueStore {
	return m.jobs
}

func (m *Manager) Close() error {
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
