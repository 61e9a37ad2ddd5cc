package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meshforge/cad-engine/internal/config"
)

// TestJobRepository_Postgres runs the repository against a real postgres.
// Needs a container runtime; go test -short skips it.
func TestJobRepository_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("cad_engine_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/cad_engine_test?sslmode=disable", host, port.Port())

	db, err := Open(config.DatabaseConfig{
		Driver:   "postgres",
		Postgres: config.PostgresConfig{DSN: dsn, MaxOpenConns: 5},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db, "postgres"))

	repo := NewJobRepository(db)
	job := &ConversionJob{Filename: "bracket.step", Format: "step", SizeBytes: 2048}
	require.NoError(t, repo.Create(ctx, job))

	job.Status = JobStatusSucceeded
	job.Stage = "write"
	job.TriangleCount = 12
	require.NoError(t, repo.Finish(ctx, job))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusSucceeded, got.Status)
	assert.Equal(t, 12, got.TriangleCount)

	jobs, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}
