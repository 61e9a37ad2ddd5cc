package storage

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus tracks a conversion job's lifecycle in the store.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// ConversionJob is the persisted record of one conversion request.
type ConversionJob struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	OutputName string    `json:"output_name"`
	Format     string    `json:"format"`
	Status     JobStatus `json:"status"`
	// Stage is the pipeline stage the job last completed, or the one it
	// failed in.
	Stage             string    `json:"stage"`
	ErrorKind         string    `json:"error_kind,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	SizeBytes         int64     `json:"size_bytes"`
	TriangleCount     int       `json:"triangle_count"`
	ArtifactBytes     int64     `json:"artifact_bytes"`
	LinearDeflection  float64   `json:"linear_deflection"`
	AngularDeflection float64   `json:"angular_deflection"`
	DurationMS        int64     `json:"duration_ms"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DailyStat aggregates one day of conversion history.
type DailyStat struct {
	Day           string  `json:"day"`
	Total         int     `json:"total"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
	AvgTriangles  float64 `json:"avg_triangles"`
}
