package test

import (
	"context"
	"os"
	"testing"

	"github.com/procura/procura/internal/profile"
	"github.com/procura/procura/store"
	"github.com/procura/procura/store/db"
)

// NewTestingStore returns a migrated store backed by an in-memory sqlite
// database, or by the driver named in PROCURA_TEST_DRIVER/PROCURA_TEST_DSN.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    ":memory:",
	}
	if driver := os.Getenv("PROCURA_TEST_DRIVER"); driver != "" {
		p.Driver = driver
		p.DSN = os.Getenv("PROCURA_TEST_DSN")
	}
	return NewStoreFromProfile(ctx, t, p)
}

// NewStoreFromProfile opens and migrates a store for p, closing it when the
// test ends.
func NewStoreFromProfile(ctx context.Context, t *testing.T, p *profile.Profile) *store.Store {
	t.Helper()
	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	if err := driver.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
