package surrealdb

import (
	"context"
	"testing"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Environment = "test"
	cfg.Storage = testStorage(t)
	return cfg
}

func TestNewManager(t *testing.T) {
	cfg := testConfig(t)

	mgr, err := NewManager(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	defer mgr.Close()

	assert.NotNil(t, mgr.PortfolioStore())
	assert.NotNil(t, mgr.PositionStore())
	assert.NotNil(t, mgr.TradeStore())
	assert.NotNil(t, mgr.SuggestionStore())
	assert.NotNil(t, mgr.OperationStore())
	assert.NotNil(t, mgr.QuoteStore())
	assert.NotNil(t, mgr.JobQueueStore())

	// Empty tables are queryable straight away
	list, err := mgr.PortfolioStore().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNewManager_SchemaIsIdempotent(t *testing.T) {
	cfg := testConfig(t)

	first, err := NewManager(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	require.NoError(t, first.PortfolioStore().Save(context.Background(), &models.Portfolio{ID: "p1", OwnerID: "u"}))
	first.Close()

	second, err := NewManager(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.PortfolioStore().Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "u", got.OwnerID)
}

func TestNewManager_BadAddress(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Address = "ws://127.0.0.1:1/rpc"

	_, err := NewManager(common.NewSilentLogger(), cfg)
	assert.Error(t, err)
}
