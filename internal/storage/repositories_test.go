package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshforge/cad-engine/internal/config"
)

func newTestRepo(t *testing.T) *JobRepository {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:", MaxOpenConns: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db, "sqlite"))
	return NewJobRepository(db)
}

func TestJobRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job := &ConversionJob{
		Filename:          "bracket.step",
		Format:            "step",
		SizeBytes:         2048,
		LinearDeflection:  0.1,
		AngularDeflection: 0.5,
	}
	require.NoError(t, repo.Create(ctx, job))
	require.NotEqual(t, uuid.Nil, job.ID)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "bracket.step", got.Filename)
	assert.Equal(t, JobStatusRunning, got.Status)
	assert.Equal(t, int64(2048), got.SizeBytes)
	assert.Equal(t, 0.1, got.LinearDeflection)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestJobRepository_Finish(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job := &ConversionJob{Filename: "bracket.step", Format: "step"}
	require.NoError(t, repo.Create(ctx, job))

	job.Status = JobStatusSucceeded
	job.Stage = "write"
	job.OutputName = "bracket.stl"
	job.TriangleCount = 12
	job.ArtifactBytes = 684
	job.DurationMS = 42
	require.NoError(t, repo.Finish(ctx, job))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusSucceeded, got.Status)
	assert.Equal(t, "bracket.stl", got.OutputName)
	assert.Equal(t, 12, got.TriangleCount)
	assert.Equal(t, int64(684), got.ArtifactBytes)
}

func TestJobRepository_FinishUnknownJob(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Finish(context.Background(), &ConversionJob{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobRepository_ListRecent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, name := range []string{"a.step", "b.step", "c.step"} {
		require.NoError(t, repo.Create(ctx, &ConversionJob{Filename: name, Format: "step"}))
		time.Sleep(2 * time.Millisecond)
	}

	jobs, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c.step", jobs[0].Filename)
	assert.Equal(t, "b.step", jobs[1].Filename)
}

func TestJobRepository_DailyStats(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	outcomes := []struct {
		status    JobStatus
		triangles int
	}{
		{JobStatusSucceeded, 12},
		{JobStatusSucceeded, 24},
		{JobStatusFailed, 0},
	}
	for _, o := range outcomes {
		job := &ConversionJob{Filename: "x.step", Format: "step"}
		require.NoError(t, repo.Create(ctx, job))

		job.Status = o.status
		job.TriangleCount = o.triangles
		job.DurationMS = 100
		require.NoError(t, repo.Finish(ctx, job))
	}

	stats, err := repo.DailyStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, 3, stats[0].Total)
	assert.Equal(t, 2, stats[0].Succeeded)
	assert.Equal(t, 1, stats[0].Failed)
	assert.InDelta(t, 18.0, stats[0].AvgTriangles, 0.01)
}
