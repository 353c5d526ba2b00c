// Package common holds shared fixtures for integration tests.
package common

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	fcommon "github.com/bobmcallan/folio/internal/common"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// EnvSurrealAddress points the tests at an already running SurrealDB
	// instead of starting a container.
	EnvSurrealAddress = "FOLIO_TEST_SURREALDB_ADDRESS"
	// EnvSurrealImage overrides the container image.
	EnvSurrealImage = "FOLIO_TEST_SURREALDB_IMAGE"

	defaultSurrealImage = "surrealdb/surrealdb:v3.0.0"
	surrealUser         = "root"
	surrealPass         = "root"
	testNamespace       = "folio_test"
)

// SurrealDB describes a SurrealDB endpoint usable by tests.
type SurrealDB struct {
	Address  string
	Username string
	Password string

	container testcontainers.Container
}

var (
	surrealOnce sync.Once
	surrealInst *SurrealDB
	surrealErr  error
)

// StartSurrealDB returns the SurrealDB shared by every test in the process,
// starting a container on first use. Tests are skipped in -short mode.
func StartSurrealDB(t *testing.T) *SurrealDB {
	t.Helper()
	if testing.Short() {
		t.Skip("SurrealDB integration test skipped in short mode")
	}

	surrealOnce.Do(func() {
		if addr := os.Getenv(EnvSurrealAddress); addr != "" {
			surrealInst = &SurrealDB{Address: addr, Username: surrealUser, Password: surrealPass}
			return
		}
		surrealInst, surrealErr = startContainer(context.Background())
	})

	if surrealErr != nil {
		t.Fatalf("SurrealDB unavailable: %v", surrealErr)
	}
	return surrealInst
}

func startContainer(ctx context.Context) (*SurrealDB, error) {
	image := os.Getenv(EnvSurrealImage)
	if image == "" {
		image = defaultSurrealImage
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", surrealUser, "--pass", surrealPass},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", image, err)
	}

	endpoint, err := c.PortEndpoint(ctx, "8000/tcp", "ws")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("resolve endpoint: %w", err)
	}

	return &SurrealDB{
		Address:   endpoint + "/rpc",
		Username:  surrealUser,
		Password:  surrealPass,
		container: c,
	}, nil
}

// StorageConfig returns a storage section selecting database inside the
// shared test namespace.
func (s *SurrealDB) StorageConfig(database string) fcommon.StorageConfig {
	return fcommon.StorageConfig{
		Backend:   "surrealdb",
		Address:   s.Address,
		Namespace: testNamespace,
		Database:  database,
		Username:  s.Username,
		Password:  s.Password,
	}
}

// Terminate stops the container, if this process started one.
func (s *SurrealDB) Terminate() {
	if s != nil && s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}
