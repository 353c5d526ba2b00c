package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioStore_GetNotFound(t *testing.T) {
	m := NewManager(common.NewSilentLogger())
	_, err := m.PortfolioStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPortfolioStore_ReturnsCopies(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()

	p := &models.Portfolio{ID: "p1", OwnerID: "u1", CashBalance: 100}
	require.NoError(t, store.Save(ctx, p))
	p.CashBalance = 0

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.CashBalance)

	got.CashBalance = 5
	again, _ := store.Get(ctx, "p1")
	assert.Equal(t, 100.0, again.CashBalance)
}

func TestPortfolioStore_ListByOwner(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, &models.Portfolio{ID: "b", OwnerID: "u1", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, store.Save(ctx, &models.Portfolio{ID: "a", OwnerID: "u1", CreatedAt: now}))
	require.NoError(t, store.Save(ctx, &models.Portfolio{ID: "c", OwnerID: "u2", CreatedAt: now}))

	list, err := store.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	all, _ := store.List(ctx)
	assert.Len(t, all, 3)
}

func TestPositionStore_ListByPortfolioAndStatus(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, &models.Position{ID: "x2", PortfolioID: "p", Symbol: "msft", Status: models.PositionOpen, OpenDate: day.AddDate(0, 0, 2)}))
	require.NoError(t, store.Save(ctx, &models.Position{ID: "x1", PortfolioID: "p", Symbol: "AAPL", Status: models.PositionOpen, OpenDate: day}))
	require.NoError(t, store.Save(ctx, &models.Position{ID: "x3", PortfolioID: "p", Symbol: "AAPL", Status: models.PositionClosed, OpenDate: day}))
	require.NoError(t, store.Save(ctx, &models.Position{ID: "y1", PortfolioID: "q", Symbol: "TSLA", Status: models.PositionOpen, OpenDate: day}))

	all, err := store.ListByPortfolio(ctx, "p", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "x2", all[2].ID)

	open, err := store.ListByPortfolio(ctx, "p", models.PositionOpen)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "x1", open[0].ID)

	symbols, err := store.ListOpenSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, symbols)

	n, err := store.DeleteByPortfolio(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPositionStore_CloseDateIsCopied(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()
	closed := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	p := &models.Position{ID: "x", CloseDate: &closed}
	require.NoError(t, store.Save(ctx, p))
	*p.CloseDate = closed.AddDate(1, 0, 0)

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.True(t, got.CloseDate.Equal(closed))
}

func TestTradeStore_CreateIsIdempotent(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &models.Trade{ID: "t1", PortfolioID: "p", PositionID: "x", Price: 10}))
	require.NoError(t, store.Create(ctx, &models.Trade{ID: "t1", PortfolioID: "p", PositionID: "x", Price: 99}))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Price)

	trades, _ := store.ListByPortfolio(ctx, "p")
	assert.Len(t, trades, 1)
}

func TestTradeStore_PositionIndex(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, &models.Trade{ID: "t2", PortfolioID: "p", PositionID: "x", Date: day.AddDate(0, 0, 1)}))
	require.NoError(t, store.Create(ctx, &models.Trade{ID: "t1", PortfolioID: "p", PositionID: "x", Date: day}))
	require.NoError(t, store.Create(ctx, &models.Trade{ID: "t3", PortfolioID: "p", PositionID: "y", Date: day}))

	byPos, err := store.ListByPosition(ctx, "x")
	require.NoError(t, err)
	require.Len(t, byPos, 2)
	assert.Equal(t, "t1", byPos[0].ID)

	require.NoError(t, store.Delete(ctx, "t1"))
	require.NoError(t, store.Delete(ctx, "t2"))
	byPos, _ = store.ListByPosition(ctx, "x")
	assert.Empty(t, byPos)
	assert.NotContains(t, store.byPosition, "x")

	n, err := store.DeleteByPortfolio(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSuggestionStore_NewestFirst(t *testing.T) {
	store := NewSuggestionStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, &models.SuggestedTrade{ID: "old", PortfolioID: "p", Status: models.SuggestionPending, CreatedAt: now}))
	require.NoError(t, store.Save(ctx, &models.SuggestedTrade{ID: "new", PortfolioID: "p", Status: models.SuggestionPending, CreatedAt: now.Add(time.Second)}))
	require.NoError(t, store.Save(ctx, &models.SuggestedTrade{ID: "gone", PortfolioID: "p", Status: models.SuggestionDismissed, CreatedAt: now}))

	pending, err := store.ListByPortfolio(ctx, "p", models.SuggestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "new", pending[0].ID)

	all, _ := store.ListByPortfolio(ctx, "p", "")
	assert.Len(t, all, 3)
}

func TestOperationStore_Incomplete(t *testing.T) {
	store := NewOperationStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, &models.LedgerOperation{ID: "o2", PortfolioID: "p", Stage: models.StageTradeWritten, CreatedAt: now.Add(time.Second)}))
	require.NoError(t, store.Save(ctx, &models.LedgerOperation{ID: "o1", PortfolioID: "p", Stage: models.StageStarted, CreatedAt: now}))
	require.NoError(t, store.Save(ctx, &models.LedgerOperation{ID: "o3", PortfolioID: "p", Stage: models.StageCompleted, CreatedAt: now, UpdatedAt: now.Add(-time.Hour)}))
	require.NoError(t, store.Save(ctx, &models.LedgerOperation{ID: "o4", PortfolioID: "q", Stage: models.StageAbandoned, CreatedAt: now, UpdatedAt: now}))

	ops, err := store.ListIncomplete(ctx, "p")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "o1", ops[0].ID)

	ids, err := store.PortfoliosWithIncomplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, ids)

	n, err := store.PurgeFinished(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = store.Get(ctx, "o3")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestQuoteStore_CaseInsensitive(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.Quote{Symbol: "AAPL", Price: 190}))
	got, err := store.Get(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, 190.0, got.Price)
}

func TestJobQueueStore_PriorityAndRetry(t *testing.T) {
	store := NewJobQueueStore()
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, &models.Job{JobType: models.JobTypeRefreshPrices, Priority: 3}))
	require.NoError(t, store.Enqueue(ctx, &models.Job{JobType: models.JobTypeReconcilePortfolio, PortfolioID: "p", Priority: 10}))

	has, err := store.HasPendingJob(ctx, models.JobTypeReconcilePortfolio, "p")
	require.NoError(t, err)
	assert.True(t, has)

	job, err := store.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobTypeReconcilePortfolio, job.JobType)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, models.JobStatusRunning, job.Status)

	job.Error = "boom"
	require.NoError(t, store.Requeue(ctx, job))
	count, _ := store.CountPending(ctx)
	assert.Equal(t, 2, count)

	again, _ := store.Dequeue(ctx)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, 2, again.Attempts)
	require.NoError(t, store.Complete(ctx, again.ID, nil, 5))

	next, _ := store.Dequeue(ctx)
	require.NotNil(t, next)
	n, err := store.ResetRunningJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jobs, _ := store.List(ctx, models.JobFilter{Limit: 10})
	assert.Len(t, jobs, 2)
	pending, _ := store.List(ctx, models.JobFilter{Status: models.JobStatusPending})
	require.Len(t, pending, 1)
	assert.Equal(t, models.JobTypeRefreshPrices, pending[0].JobType)

	purged, _ := store.PurgeCompleted(ctx, time.Now().Add(time.Minute))
	assert.Equal(t, 1, purged)
}

func TestJobQueueStore_EmptyDequeue(t *testing.T) {
	store := NewJobQueueStore()
	job, err := store.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}
