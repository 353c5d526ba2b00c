package storage

import (
	"testing"

	"github.com/bobmcallan/folio/internal/common"
)

func TestNewStorageManager_Memory(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "Memory"

	mgr, err := NewStorageManager(common.NewSilentLogger(), cfg)
	if err != nil {
		t.Fatalf("NewStorageManager failed: %v", err)
	}
	defer mgr.Close()

	if mgr.PortfolioStore() == nil || mgr.TradeStore() == nil || mgr.OperationStore() == nil {
		t.Fatal("memory manager returned nil stores")
	}
}

func TestNewStorageManager_UnknownBackend(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "badger"

	if _, err := NewStorageManager(common.NewSilentLogger(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
