package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var (
	testPortfolioID = "pf-1"
	testDay         = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	errInjected     = errors.New("injected storage failure")
)

type testEnv struct {
	svc     *Service
	store   *faultyStorage
	locks   *common.PortfolioLocks
	ctx     context.Context
	logger  *common.Logger
	initial float64
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	logger := common.NewSilentLogger()
	store := newFaultyStorage(memory.NewManager(logger))
	locks := common.NewPortfolioLocks()

	env := &testEnv{
		svc:     NewService(store, locks, logger, opts...),
		store:   store,
		locks:   locks,
		ctx:     context.Background(),
		logger:  logger,
		initial: 10000,
	}

	require.NoError(t, store.PortfolioStore().Save(env.ctx, &models.Portfolio{
		ID:                 testPortfolioID,
		OwnerID:            "alice",
		Name:               "Test",
		CashBalance:        env.initial,
		InitialCashBalance: env.initial,
		CreatedAt:          testDay,
		UpdatedAt:          testDay,
	}))
	return env
}

func (e *testEnv) portfolio(t *testing.T) *models.Portfolio {
	t.Helper()
	p, err := e.store.PortfolioStore().Get(e.ctx, testPortfolioID)
	require.NoError(t, err)
	return p
}

func (e *testEnv) position(t *testing.T, id string) *models.Position {
	t.Helper()
	p, err := e.store.PositionStore().Get(e.ctx, id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) trades(t *testing.T) []*models.Trade {
	t.Helper()
	trades, err := e.store.TradeStore().ListByPortfolio(e.ctx, testPortfolioID)
	require.NoError(t, err)
	return trades
}

func (e *testEnv) operation(t *testing.T, id string) *models.LedgerOperation {
	t.Helper()
	op, err := e.store.OperationStore().Get(e.ctx, id)
	require.NoError(t, err)
	return op
}

func (e *testEnv) open(t *testing.T, symbol string, qty, price, fee float64) *models.LedgerResult {
	t.Helper()
	res, err := e.svc.OpenPosition(e.ctx, models.OpenPositionRequest{
		PortfolioID: testPortfolioID,
		Symbol:      symbol,
		Quantity:    qty,
		OpenPrice:   price,
		Fee:         fee,
		OpenDate:    testDay,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) close(t *testing.T, positionID string, qty *float64, price, fee float64) *models.LedgerResult {
	t.Helper()
	res, err := e.svc.ClosePosition(e.ctx, models.ClosePositionRequest{
		PortfolioID: testPortfolioID,
		PositionID:  positionID,
		ClosePrice:  price,
		Quantity:    qty,
		Fee:         fee,
		CloseDate:   testDay.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	return res
}

func ptr(f float64) *float64 { return &f }

// faultyStorage wraps a storage manager and fails chosen calls a set
// number of times. Call names are "<store>.<method>".
type faultyStorage struct {
	interfaces.StorageManager
	mu    sync.Mutex
	fails map[string]int
	skips map[string]int
}

func newFaultyStorage(inner interfaces.StorageManager) *faultyStorage {
	return &faultyStorage{StorageManager: inner, fails: make(map[string]int), skips: make(map[string]int)}
}

func (f *faultyStorage) failNext(call string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[call] = times
}

// failAfter lets the next skip calls through and fails the one after.
func (f *faultyStorage) failAfter(call string, skip int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skips[call] = skip
	f.fails[call] = 1
}

func (f *faultyStorage) check(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.skips[call] > 0 {
		f.skips[call]--
		return nil
	}
	if f.fails[call] > 0 {
		f.fails[call]--
		return errInjected
	}
	return nil
}

func (f *faultyStorage) PortfolioStore() interfaces.PortfolioStore {
	return &faultyPortfolioStore{PortfolioStore: f.StorageManager.PortfolioStore(), f: f}
}

func (f *faultyStorage) PositionStore() interfaces.PositionStore {
	return &faultyPositionStore{PositionStore: f.StorageManager.PositionStore(), f: f}
}

func (f *faultyStorage) TradeStore() interfaces.TradeStore {
	return &faultyTradeStore{TradeStore: f.StorageManager.TradeStore(), f: f}
}

func (f *faultyStorage) SuggestionStore() interfaces.SuggestionStore {
	return &faultySuggestionStore{SuggestionStore: f.StorageManager.SuggestionStore(), f: f}
}

func (f *faultyStorage) OperationStore() interfaces.OperationStore {
	return &faultyOperationStore{OperationStore: f.StorageManager.OperationStore(), f: f}
}

type faultyPortfolioStore struct {
	interfaces.PortfolioStore
	f *faultyStorage
}

func (s *faultyPortfolioStore) Save(ctx context.Context, p *models.Portfolio) error {
	if err := s.f.check("portfolio.save"); err != nil {
		return err
	}
	return s.PortfolioStore.Save(ctx, p)
}

type faultyPositionStore struct {
	interfaces.PositionStore
	f *faultyStorage
}

func (s *faultyPositionStore) Save(ctx context.Context, p *models.Position) error {
	if err := s.f.check("position.save"); err != nil {
		return err
	}
	return s.PositionStore.Save(ctx, p)
}

func (s *faultyPositionStore) Delete(ctx context.Context, id string) error {
	if err := s.f.check("position.delete"); err != nil {
		return err
	}
	return s.PositionStore.Delete(ctx, id)
}

type faultyTradeStore struct {
	interfaces.TradeStore
	f *faultyStorage
}

func (s *faultyTradeStore) Create(ctx context.Context, t *models.Trade) error {
	if err := s.f.check("trade.create"); err != nil {
		return err
	}
	return s.TradeStore.Create(ctx, t)
}

func (s *faultyTradeStore) Delete(ctx context.Context, id string) error {
	if err := s.f.check("trade.delete"); err != nil {
		return err
	}
	return s.TradeStore.Delete(ctx, id)
}

type faultySuggestionStore struct {
	interfaces.SuggestionStore
	f *faultyStorage
}

func (s *faultySuggestionStore) Save(ctx context.Context, st *models.SuggestedTrade) error {
	if err := s.f.check("suggestion.save"); err != nil {
		return err
	}
	return s.SuggestionStore.Save(ctx, st)
}

type faultyOperationStore struct {
	interfaces.OperationStore
	f *faultyStorage
}

func (s *faultyOperationStore) Save(ctx context.Context, op *models.LedgerOperation) error {
	if err := s.f.check("operation.save"); err != nil {
		return err
	}
	return s.OperationStore.Save(ctx, op)
}
