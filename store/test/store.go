package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/chatrelay/internal/profile"
	"github.com/hrygo/chatrelay/store"
	"github.com/hrygo/chatrelay/store/db"
)

// NewTestingStore opens a migrated store for the given driver.
// PostgreSQL tests are skipped unless POSTGRES_TEST_DSN points at a scratch database.
func NewTestingStore(ctx context.Context, t *testing.T, driver string) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: driver,
	}
	switch driver {
	case "sqlite":
		p.DSN = filepath.Join(t.TempDir(), "chatrelay_test.db")
	case "postgres":
		dsn := os.Getenv("POSTGRES_TEST_DSN")
		if dsn == "" {
			t.Skip("POSTGRES_TEST_DSN not set")
		}
		p.DSN = dsn
	default:
		t.Fatalf("unsupported driver %q", driver)
	}

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	ts := store.New(dbDriver, p)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		if driver == "postgres" {
			_, _ = dbDriver.GetDB().ExecContext(context.Background(), "DELETE FROM user_thread; DELETE FROM user_preferences;")
		}
		ts.Close()
	})
	return ts
}
