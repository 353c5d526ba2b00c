package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// PortfolioStore keeps portfolios in a map.
type PortfolioStore struct {
	mu   sync.RWMutex
	data map[string]models.Portfolio
}

func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{data: make(map[string]models.Portfolio)}
}

func (s *PortfolioStore) Get(ctx context.Context, id string) (*models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", id, models.ErrNotFound)
	}
	return &p, nil
}

func (s *PortfolioStore) Save(ctx context.Context, p *models.Portfolio) error {
	if p.ID == "" {
		return fmt.Errorf("portfolio id is required: %w", models.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[p.ID] = *p
	return nil
}

func (s *PortfolioStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *PortfolioStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Portfolio, error) {
	return s.list(func(p *models.Portfolio) bool { return p.OwnerID == ownerID }), nil
}

func (s *PortfolioStore) List(ctx context.Context) ([]*models.Portfolio, error) {
	return s.list(func(*models.Portfolio) bool { return true }), nil
}

func (s *PortfolioStore) list(keep func(*models.Portfolio) bool) []*models.Portfolio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Portfolio
	for _, p := range s.data {
		if keep(&p) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PositionStore keeps positions in a map.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]models.Position
}

func NewPositionStore() *PositionStore {
	return &PositionStore{data: make(map[string]models.Position)}
}

func (s *PositionStore) Get(ctx context.Context, id string) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, models.ErrNotFound)
	}
	return clonePosition(&p), nil
}

func (s *PositionStore) Save(ctx context.Context, p *models.Position) error {
	if p.ID == "" {
		return fmt.Errorf("position id is required: %w", models.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[p.ID] = *clonePosition(p)
	return nil
}

func (s *PositionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *PositionStore) ListByPortfolio(ctx context.Context, portfolioID string, status models.PositionStatus) ([]*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Position
	for _, p := range s.data {
		if p.PortfolioID != portfolioID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, clonePosition(&p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenDate.Equal(out[j].OpenDate) {
			return out[i].OpenDate.Before(out[j].OpenDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *PositionStore) ListOpenSymbols(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.data {
		sym := strings.ToUpper(p.Symbol)
		if p.Status != models.PositionOpen || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (s *PositionStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.data {
		if p.PortfolioID == portfolioID {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}

// TradeStore keeps the trade log with a position index for cascades.
type TradeStore struct {
	mu         sync.RWMutex
	data       map[string]models.Trade
	byPosition map[string]map[string]struct{}
}

func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:       make(map[string]models.Trade),
		byPosition: make(map[string]map[string]struct{}),
	}
}

func (s *TradeStore) Create(ctx context.Context, t *models.Trade) error {
	if t.ID == "" {
		return fmt.Errorf("trade id is required: %w", models.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[t.ID]; exists {
		return nil
	}
	s.data[t.ID] = *t
	if t.PositionID != "" {
		idx, ok := s.byPosition[t.PositionID]
		if !ok {
			idx = make(map[string]struct{})
			s.byPosition[t.PositionID] = idx
		}
		idx[t.ID] = struct{}{}
	}
	return nil
}

func (s *TradeStore) Get(ctx context.Context, id string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, models.ErrNotFound)
	}
	return &t, nil
}

func (s *TradeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
	return nil
}

func (s *TradeStore) deleteLocked(id string) {
	t, ok := s.data[id]
	if !ok {
		return
	}
	delete(s.data, id)
	if idx, ok := s.byPosition[t.PositionID]; ok {
		delete(idx, id)
		if len(idx) == 0 {
			delete(s.byPosition, t.PositionID)
		}
	}
}

func (s *TradeStore) ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Trade
	for _, t := range s.data {
		if t.PortfolioID == portfolioID {
			out = append(out, &t)
		}
	}
	sortTrades(out)
	return out, nil
}

func (s *TradeStore) ListByPosition(ctx context.Context, positionID string) ([]*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Trade
	for id := range s.byPosition[positionID] {
		t := s.data[id]
		out = append(out, &t)
	}
	sortTrades(out)
	return out, nil
}

func (s *TradeStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, t := range s.data {
		if t.PortfolioID == portfolioID {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		s.deleteLocked(id)
	}
	return len(ids), nil
}

func sortTrades(trades []*models.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].Date.Equal(trades[j].Date) {
			return trades[i].Date.Before(trades[j].Date)
		}
		if !trades[i].CreatedAt.Equal(trades[j].CreatedAt) {
			return trades[i].CreatedAt.Before(trades[j].CreatedAt)
		}
		return trades[i].ID < trades[j].ID
	})
}

// SuggestionStore keeps suggested trades in a map.
type SuggestionStore struct {
	mu   sync.RWMutex
	data map[string]models.SuggestedTrade
}

func NewSuggestionStore() *SuggestionStore {
	return &SuggestionStore{data: make(map[string]models.SuggestedTrade)}
}

func (s *SuggestionStore) Get(ctx context.Context, id string) (*models.SuggestedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("suggested trade %s: %w", id, models.ErrNotFound)
	}
	return &st, nil
}

func (s *SuggestionStore) Save(ctx context.Context, st *models.SuggestedTrade) error {
	if st.ID == "" {
		return fmt.Errorf("suggested trade id is required: %w", models.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[st.ID] = *st
	return nil
}

func (s *SuggestionStore) ListByPortfolio(ctx context.Context, portfolioID string, status models.SuggestionStatus) ([]*models.SuggestedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SuggestedTrade
	for _, st := range s.data {
		if st.PortfolioID != portfolioID || (status != "" && st.Status != status) {
			continue
		}
		out = append(out, &st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *SuggestionStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.data {
		if st.PortfolioID == portfolioID {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}

// OperationStore keeps the ledger journal in a map.
type OperationStore struct {
	mu   sync.RWMutex
	data map[string]*models.LedgerOperation
}

func NewOperationStore() *OperationStore {
	return &OperationStore{data: make(map[string]*models.LedgerOperation)}
}

func (s *OperationStore) Get(ctx context.Context, id string) (*models.LedgerOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("ledger operation %s: %w", id, models.ErrNotFound)
	}
	return cloneOperation(op), nil
}

func (s *OperationStore) Save(ctx context.Context, op *models.LedgerOperation) error {
	if op.ID == "" {
		return fmt.Errorf("operation id is required: %w", models.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[op.ID] = cloneOperation(op)
	return nil
}

func (s *OperationStore) ListIncomplete(ctx context.Context, portfolioID string) ([]*models.LedgerOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LedgerOperation
	for _, op := range s.data {
		if op.PortfolioID == portfolioID && !op.IsFinished() {
			out = append(out, cloneOperation(op))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *OperationStore) PortfoliosWithIncomplete(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, op := range s.data {
		if op.IsFinished() || seen[op.PortfolioID] {
			continue
		}
		seen[op.PortfolioID] = true
		out = append(out, op.PortfolioID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *OperationStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, op := range s.data {
		if op.PortfolioID == portfolioID {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}

func (s *OperationStore) PurgeFinished(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, op := range s.data {
		if op.IsFinished() && op.UpdatedAt.Before(olderThan) {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}

// QuoteStore keeps the last quote per symbol.
type QuoteStore struct {
	mu   sync.RWMutex
	data map[string]models.Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{data: make(map[string]models.Quote)}
}

func (s *QuoteStore) Get(ctx context.Context, symbol string) (*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.data[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("quote %s: %w", symbol, models.ErrNotFound)
	}
	return &q, nil
}

func (s *QuoteStore) Save(ctx context.Context, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[strings.ToUpper(q.Symbol)] = *q
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

func cloneOperation(op *models.LedgerOperation) *models.LedgerOperation {
	c := *op
	if op.Position != nil {
		c.Position = clonePosition(op.Position)
	}
	if op.Source != nil {
		c.Source = clonePosition(op.Source)
	}
	if op.Trade != nil {
		t := *op.Trade
		c.Trade = &t
	}
	if op.TradeIDs != nil {
		c.TradeIDs = append([]string(nil), op.TradeIDs...)
	}
	if op.CompletedAt != nil {
		t := *op.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Compile-time checks
var (
	_ interfaces.PortfolioStore  = (*PortfolioStore)(nil)
	_ interfaces.PositionStore   = (*PositionStore)(nil)
	_ interfaces.TradeStore      = (*TradeStore)(nil)
	_ interfaces.SuggestionStore = (*SuggestionStore)(nil)
	_ interfaces.OperationStore  = (*OperationStore)(nil)
	_ interfaces.QuoteStore      = (*QuoteStore)(nil)
)
