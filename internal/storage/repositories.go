package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound means no job record matches.
var ErrNotFound = errors.New("job not found")

// DB is the connection surface the repository needs.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// JobRepository handles conversion job records.
type JobRepository struct {
	db DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts the job at request receipt, in the running state.
func (r *JobRepository) Create(ctx context.Context, job *ConversionJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = JobStatusRunning
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	query := `
		INSERT INTO conversion_jobs (
			id, filename, output_name, format, status, stage,
			error_kind, error_message, size_bytes, triangle_count,
			artifact_bytes, linear_deflection, angular_deflection,
			duration_ms, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID.String(), job.Filename, job.OutputName, job.Format, job.Status, job.Stage,
		job.ErrorKind, job.ErrorMessage, job.SizeBytes, job.TriangleCount,
		job.ArtifactBytes, job.LinearDeflection, job.AngularDeflection,
		job.DurationMS, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// Finish records the job's terminal outcome. Placeholders stay in textual
// order because sqlite numbers $N parameters by first occurrence.
func (r *JobRepository) Finish(ctx context.Context, job *ConversionJob) error {
	job.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE conversion_jobs
		SET status = $1, stage = $2, error_kind = $3, error_message = $4,
		    output_name = $5, format = $6, triangle_count = $7,
		    artifact_bytes = $8, duration_ms = $9, updated_at = $10
		WHERE id = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		job.Status, job.Stage, job.ErrorKind, job.ErrorMessage,
		job.OutputName, job.Format, job.TriangleCount,
		job.ArtifactBytes, job.DurationMS, job.UpdatedAt,
		job.ID.String(),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves one job.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*ConversionJob, error) {
	query := `
		SELECT id, filename, output_name, format, status, stage,
		       error_kind, error_message, size_bytes, triangle_count,
		       artifact_bytes, linear_deflection, angular_deflection,
		       duration_ms, created_at, updated_at
		FROM conversion_jobs WHERE id = $1
	`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// ListRecent returns the newest jobs first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]*ConversionJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, filename, output_name, format, status, stage,
		       error_kind, error_message, size_bytes, triangle_count,
		       artifact_bytes, linear_deflection, angular_deflection,
		       duration_ms, created_at, updated_at
		FROM conversion_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ConversionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DailyStats aggregates outcomes per calendar day, newest first. The day
// is cut from the timestamp text, which both sqlite and postgres render
// ISO-style.
func (r *JobRepository) DailyStats(ctx context.Context, days int) ([]DailyStat, error) {
	if days <= 0 {
		days = 30
	}
	query := `
		SELECT SUBSTR(CAST(created_at AS TEXT), 1, 10) AS day,
		       COUNT(*) AS total,
		       SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END) AS succeeded,
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed,
		       AVG(duration_ms) AS avg_duration_ms,
		       AVG(CASE WHEN status = 'succeeded' THEN triangle_count END) AS avg_triangles
		FROM conversion_jobs
		GROUP BY day
		ORDER BY day DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var s DailyStat
		var avgDuration, avgTriangles sql.NullFloat64
		if err := rows.Scan(&s.Day, &s.Total, &s.Succeeded, &s.Failed, &avgDuration, &avgTriangles); err != nil {
			return nil, err
		}
		s.AvgDurationMS = avgDuration.Float64
		s.AvgTriangles = avgTriangles.Float64
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*ConversionJob, error) {
	job := &ConversionJob{}
	var id string
	err := s.Scan(
		&id, &job.Filename, &job.OutputName, &job.Format, &job.Status, &job.Stage,
		&job.ErrorKind, &job.ErrorMessage, &job.SizeBytes, &job.TriangleCount,
		&job.ArtifactBytes, &job.LinearDeflection, &job.AngularDeflection,
		&job.DurationMS, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return job, nil
}
