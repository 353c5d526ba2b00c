package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	tcommon "github.com/bobmcallan/folio/tests/common"
	surreal "github.com/surrealdb/surrealdb.go"
)

// testStorage returns a storage config for a database private to this test.
func testStorage(t *testing.T) common.StorageConfig {
	t.Helper()
	return tcommon.StartSurrealDB(t).StorageConfig(testDBName(t))
}

// testDB connects straight to a fresh per-test database with the schema
// applied, bypassing the Manager.
func testDB(t *testing.T) *surreal.DB {
	t.Helper()
	cfg := testStorage(t)
	ctx := context.Background()

	db, err := surreal.New(cfg.Address)
	if err != nil {
		t.Fatalf("connect %s: %v", cfg.Address, err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })

	if _, err := db.SignIn(ctx, map[string]interface{}{"user": cfg.Username, "pass": cfg.Password}); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		t.Fatalf("use %s/%s: %v", cfg.Namespace, cfg.Database, err)
	}
	if err := defineSchema(ctx, db); err != nil {
		t.Fatalf("define schema: %v", err)
	}
	return db
}

// testDBName derives a database name SurrealDB accepts from the test name.
func testDBName(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(t.Name())
	return fmt.Sprintf("t_%s_%d", name, time.Now().UnixNano()%100000)
}

func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
