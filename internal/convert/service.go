package convert

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meshforge/cad-engine/internal/artifact"
	"github.com/meshforge/cad-engine/internal/cache"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/metrics"
	"github.com/meshforge/cad-engine/internal/monitoring"
	"github.com/meshforge/cad-engine/internal/observability"
	"github.com/meshforge/cad-engine/internal/stl"
	"github.com/meshforge/cad-engine/internal/storage"
)

// ServiceOptions wires the supporting subsystems around the pipeline. Every
// field is optional; a nil field switches that concern off.
type ServiceOptions struct {
	Cache     cache.Client
	CacheTTL  time.Duration
	Jobs      *storage.JobRepository
	Artifacts artifact.Store
	Metrics   *metrics.Recorder
	Audit     *monitoring.AuditLogger
}

// Service runs conversions through the pipeline and handles everything the
// pipeline itself stays ignorant of: the artifact cache, the job store,
// metrics, the audit trail, and artifact persistence.
type Service struct {
	pipeline *Pipeline
	opts     ServiceOptions
	logger   *observability.Logger
}

// Outcome is a finished conversion plus how it was served.
type Outcome struct {
	Result *domain.ConversionResult
	// CacheHit is true when the artifact came from the cache and the
	// pipeline never ran.
	CacheHit bool
}

// NewService wraps a pipeline with the configured subsystems.
func NewService(p *Pipeline, opts ServiceOptions, logger *observability.Logger) *Service {
	return &Service{pipeline: p, opts: opts, logger: logger}
}

// Convert serves one conversion request. Identical bytes converted with the
// same tolerances yield the identical artifact, so cached results are safe
// to return without running the pipeline again.
func (s *Service) Convert(ctx context.Context, req domain.ConversionRequest) (*Outcome, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.ConversionStarted(len(req.Data))
	}
	timer := metrics.NewTimer()

	if s.opts.Audit != nil {
		s.opts.Audit.LogReceived(ctx, req.ID, req.Filename, len(req.Data))
	}

	// Validation runs before the cache lookup so a cached artifact can never
	// dress up an invalid upload as a success.
	vf, err := s.pipeline.Validate(req.Data, req.Filename)
	if err != nil {
		werr := domain.ConversionError("conversion failed during validate", err)
		s.recordFailure(ctx, req, "", timer.Duration(), werr)
		return nil, werr
	}
	format := string(vf.Format)

	linear, angular := s.pipeline.Deflections()

	// The cache holds binary artifacts only; ASCII requests go straight to
	// the pipeline.
	var key string
	if s.opts.Cache != nil && !req.ASCIIOutput {
		key = cache.ArtifactKey(req.Data, linear, angular)
		if outcome, ok := s.tryCache(ctx, req, vf, key, format, timer); ok {
			return outcome, nil
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.CacheMiss()
		}
	}

	job := s.createJob(ctx, req, vf, linear, angular)

	result, err := s.pipeline.Convert(ctx, req)
	if err != nil {
		s.recordFailure(ctx, req, format, timer.Duration(), err)
		s.finishJob(ctx, job, func(j *storage.ConversionJob) {
			kind, _ := domain.CauseKind(err)
			j.Status = storage.JobStatusFailed
			j.Stage = stageForKind(kind)
			j.ErrorKind = string(kind)
			j.ErrorMessage = err.Error()
			j.DurationMS = timer.Duration().Milliseconds()
		})
		return nil, err
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.StageObserved("validate", result.Timings.Validate)
		s.opts.Metrics.StageObserved("read", result.Timings.Read)
		s.opts.Metrics.StageObserved("mesh", result.Timings.Mesh)
		s.opts.Metrics.StageObserved("write", result.Timings.Write)
		s.opts.Metrics.ConversionFinished(format, "succeeded", result.TriangleCount, result.Duration)
	}
	if s.opts.Audit != nil {
		s.opts.Audit.LogSucceeded(ctx, req.ID, req.Filename, result.TriangleCount, result.SizeBytes)
	}

	s.finishJob(ctx, job, func(j *storage.ConversionJob) {
		j.Status = storage.JobStatusSucceeded
		j.Stage = "write"
		j.OutputName = result.OutputName
		j.TriangleCount = result.TriangleCount
		j.ArtifactBytes = result.SizeBytes
		j.DurationMS = result.Duration.Milliseconds()
	})

	if key != "" {
		if err := s.opts.Cache.Set(ctx, key, result.Data, s.opts.CacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("artifact cache store failed")
		}
	}

	if s.opts.Artifacts != nil {
		name := result.ID.String() + ".stl"
		if err := s.opts.Artifacts.Save(ctx, name, result.Data); err != nil {
			s.logger.Warn().Err(err).Str("artifact", name).Msg("artifact persistence failed")
		}
	}

	return &Outcome{Result: result}, nil
}

// tryCache serves the request from a usable cache entry. Unreadable entries
// are dropped and the caller falls through to a fresh conversion.
func (s *Service) tryCache(ctx context.Context, req domain.ConversionRequest, vf *domain.ValidatedFile, key, format string, timer *metrics.Timer) (*Outcome, bool) {
	cached, err := s.opts.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("artifact cache lookup failed")
		}
		return nil, false
	}

	info, err := stl.ReadInfo(cached)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cached artifact unreadable, discarding")
		_ = s.opts.Cache.Delete(ctx, key)
		return nil, false
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.CacheHit()
		s.opts.Metrics.ConversionFinished(format, "cached", info.TriangleCount, timer.Duration())
	}
	if s.opts.Audit != nil {
		s.opts.Audit.LogCacheHit(ctx, req.ID, req.Filename)
	}

	s.logger.Info().
		Str("conversion_id", req.ID.String()).
		Str("filename", req.Filename).
		Int("triangles", info.TriangleCount).
		Msg("conversion served from cache")

	return &Outcome{
		Result: &domain.ConversionResult{
			ID:            req.ID,
			Filename:      req.Filename,
			OutputName:    domain.StlFilename(req.Filename),
			Format:        vf.Format,
			Data:          cached,
			TriangleCount: info.TriangleCount,
			SizeBytes:     info.SizeBytes,
			Duration:      timer.Duration(),
		},
		CacheHit: true,
	}, true
}

// recordFailure reports a failed conversion to metrics and the audit trail.
// Validation failures never opened a job row, so one is written directly in
// the failed state to keep the history complete.
func (s *Service) recordFailure(ctx context.Context, req domain.ConversionRequest, format string, duration time.Duration, err error) {
	if format == "" {
		format = "unknown"
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ConversionFinished(format, "failed", 0, duration)
	}
	if s.opts.Audit != nil {
		s.opts.Audit.LogFailed(ctx, req.ID, req.Filename, err)
	}

	kind, _ := domain.CauseKind(err)
	if stageForKind(kind) != "validate" || s.opts.Jobs == nil {
		return
	}
	linear, angular := s.pipeline.Deflections()
	job := &storage.ConversionJob{
		ID:                req.ID,
		Filename:          req.Filename,
		Status:            storage.JobStatusFailed,
		Stage:             "validate",
		ErrorKind:         string(kind),
		ErrorMessage:      err.Error(),
		SizeBytes:         int64(len(req.Data)),
		LinearDeflection:  linear,
		AngularDeflection: angular,
		DurationMS:        duration.Milliseconds(),
	}
	if cerr := s.opts.Jobs.Create(ctx, job); cerr != nil {
		s.logger.Warn().Err(cerr).Msg("job record create failed")
	}
}

// createJob opens the job record in the running state. Returns nil when the
// store is off or the insert fails; conversion proceeds either way.
func (s *Service) createJob(ctx context.Context, req domain.ConversionRequest, vf *domain.ValidatedFile, linear, angular float64) *storage.ConversionJob {
	if s.opts.Jobs == nil {
		return nil
	}
	job := &storage.ConversionJob{
		ID:                req.ID,
		Filename:          req.Filename,
		Format:            string(vf.Format),
		Status:            storage.JobStatusRunning,
		Stage:             "validate",
		SizeBytes:         vf.SizeBytes,
		LinearDeflection:  linear,
		AngularDeflection: angular,
	}
	if err := s.opts.Jobs.Create(ctx, job); err != nil {
		s.logger.Warn().Err(err).Msg("job record create failed")
		return nil
	}
	return job
}

// finishJob applies the outcome and persists it. Store failures only warn;
// the conversion result is already decided.
func (s *Service) finishJob(ctx context.Context, job *storage.ConversionJob, apply func(*storage.ConversionJob)) {
	if job == nil || s.opts.Jobs == nil {
		return
	}
	apply(job)
	if err := s.opts.Jobs.Finish(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID.String()).Msg("job record finish failed")
	}
}

// stageForKind maps an error kind back to the pipeline stage that owns it.
func stageForKind(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrKindInvalidFileType, domain.ErrKindFileSizeExceeded:
		return "validate"
	case domain.ErrKindIO:
		return "workspace"
	case domain.ErrKindStepRead:
		return "read"
	case domain.ErrKindMeshing:
		return "mesh"
	case domain.ErrKindStlWrite:
		return "write"
	default:
		return "convert"
	}
}

// Engine reports the kernel backend behind the service.
func (s *Service) Engine() string {
	return s.pipeline.Engine()
}

// Healthy reports whether the kernel session can take work.
func (s *Service) Healthy(ctx context.Context) error {
	return s.pipeline.Healthy(ctx)
}

// Deflections returns the tolerance pair conversions run with.
func (s *Service) Deflections() (linear, angular float64) {
	return s.pipeline.Deflections()
}
