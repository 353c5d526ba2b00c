// Package storage selects and constructs the configured storage backend.
package storage

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/storage/memory"
	"github.com/bobmcallan/folio/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendSurrealDB = "surrealdb"
	BackendMemory    = "memory"
)

// NewStorageManager creates a storage manager based on the configuration.
// Supported backends: "surrealdb" (default), "memory".
func NewStorageManager(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if backend == "" {
		backend = BackendSurrealDB
	}

	switch backend {
	case BackendSurrealDB:
		mgr, err := surrealdb.NewManager(logger, config)
		if err != nil {
			return nil, err
		}
		return mgr, nil

	case BackendMemory:
		logger.Warn().Msg("Using in-memory storage: data is lost on restart")
		return memory.NewManager(logger), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: surrealdb, memory)", backend)
	}
}
