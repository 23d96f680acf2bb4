// Package testutil opens a migrated Postgres pool for adapter tests.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/househealth/househealth-api/internal/adapters/postgres"
	"github.com/househealth/househealth-api/internal/domain"
)

// EnvTestURL names the variable holding the test database URL.
const EnvTestURL = "POSTGRES_TEST_URL"

var migrateOnce sync.Once

// OpenMigratedPool connects to POSTGRES_TEST_URL and applies migrations once per process.
// The test is skipped when the variable is unset.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvTestURL)
	if url == "" {
		t.Skipf("%s not set; skipping postgres tests", EnvTestURL)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, url, postgres.PoolOptions{MaxConns: 8})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	var migrateErr error
	migrateOnce.Do(func() {
		migrateErr = postgres.Migrate(ctx, pool, nil)
	})
	if migrateErr != nil {
		t.Fatalf("migrate: %v", migrateErr)
	}
	return pool
}

// SeedUsers inserts minimal user rows so foreign keys resolve.
func SeedUsers(t *testing.T, pool *pgxpool.Pool, ids ...domain.UserID) {
	t.Helper()
	for _, id := range ids {
		_, err := pool.Exec(context.Background(), `
			INSERT INTO users (id, email, display_name, created_at)
			VALUES ($1, $2, $3, now())
		`, string(id), string(id)+"@seed.test", "seed")
		if err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}
