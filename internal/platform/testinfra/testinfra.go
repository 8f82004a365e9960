// Package testinfra starts throwaway Postgres and Redis containers for integration tests.
// Tests using it are skipped in -short mode and when no container runtime is available.
package testinfra

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/p-n-ai/dsaquest/internal/platform/cache"
	"github.com/p-n-ai/dsaquest/internal/platform/database"
)

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// Postgres returns a migrated database backed by a fresh container.
func Postgres(t *testing.T) *database.DB {
	t.Helper()
	skipUnlessIntegration(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dsaquest"),
		postgres.WithUsername("dsaquest"),
		postgres.WithPassword("dsaquest"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	db, err := database.New(ctx, url, 5, 1)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Redis returns a cache client connected to a fresh container.
func Redis(t *testing.T) *cache.Cache {
	t.Helper()
	skipUnlessIntegration(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	c, err := cache.New(ctx, fmt.Sprintf("redis://%s/0", endpoint))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
