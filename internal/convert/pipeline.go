package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/kernel"
	"github.com/meshforge/cad-engine/internal/observability"
	"github.com/meshforge/cad-engine/internal/validate"
)

// PipelineConfig holds the knobs a pipeline is built with. Deflections are
// fixed at construction and never vary per request.
type PipelineConfig struct {
	WorkDir           string
	MaxFileSizeBytes  int64
	LinearDeflection  float64
	AngularDeflection float64
}

// Pipeline runs conversions through the fixed stage order: validate, read,
// mesh, write. Strictly sequential, fail fast, no retries. A stage error
// moves the conversion to Failed and is re-wrapped as a ConversionError at
// the boundary with the stage's own kind preserved underneath.
type Pipeline struct {
	logger    *observability.Logger
	cfg       PipelineConfig
	validator domain.Validator
	reader    *GeometryReader
	mesher    *ShapeMesher
	writer    *MeshWriter
	kernel    kernel.Kernel

	// OnTransition observes every state change. The audit trail hangs off
	// this; nil is fine.
	OnTransition func(id uuid.UUID, from, to domain.State)
}

// NewPipeline assembles the stages over one kernel.
func NewPipeline(cfg PipelineConfig, k kernel.Kernel, logger *observability.Logger) *Pipeline {
	return &Pipeline{
		logger:    logger,
		cfg:       cfg,
		validator: validate.NewFileValidator(cfg.MaxFileSizeBytes, logger),
		reader:    NewGeometryReader(k, logger),
		mesher:    NewShapeMesher(k, cfg.LinearDeflection, cfg.AngularDeflection, logger),
		writer:    NewMeshWriter(k, logger),
		kernel:    k,
	}
}

// Deflections returns the tolerance pair the pipeline meshes with.
func (p *Pipeline) Deflections() (linear, angular float64) {
	return p.cfg.LinearDeflection, p.cfg.AngularDeflection
}

// Validate runs just the validation stage, without starting a conversion.
func (p *Pipeline) Validate(data []byte, filename string) (*domain.ValidatedFile, error) {
	return p.validator.Validate(data, filename)
}

// Convert runs one file through the pipeline. The returned result carries
// the finished STL in memory; nothing is left in the work directory.
func (p *Pipeline) Convert(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	start := time.Now()
	state := domain.StateIdle
	var timings domain.StageTimings

	log := p.logger.WithConversion(req.ID.String())

	fail := func(stage string, err error) (*domain.ConversionResult, error) {
		p.transition(req.ID, &state, domain.StateFailed)
		log.Error().Str("stage", stage).Err(err).Msg("conversion failed")
		return nil, domain.ConversionError("conversion failed during "+stage, err)
	}

	log.Info().
		Str("filename", req.Filename).
		Int("size_bytes", len(req.Data)).
		Msg("conversion started")

	// Step 1: Validate the upload
	stageStart := time.Now()
	vf, err := p.validator.Validate(req.Data, req.Filename)
	if err != nil {
		return fail("validate", err)
	}
	timings.Validate = time.Since(stageStart)
	p.transition(req.ID, &state, domain.StateValidated)

	// Step 2: Stage the input in a scratch directory of its own
	if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
		return fail("workspace", domain.IOError("failed to create work directory", err))
	}
	workDir, err := os.MkdirTemp(p.cfg.WorkDir, "conv-*")
	if err != nil {
		return fail("workspace", domain.IOError("failed to create conversion workspace", err))
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input"+vf.Extension)
	if err := os.WriteFile(inputPath, req.Data, 0o600); err != nil {
		return fail("workspace", domain.IOError("failed to stage input file", err))
	}

	select {
	case <-ctx.Done():
		return fail("read", ctx.Err())
	default:
	}

	// Step 3: Read geometry
	stageStart = time.Now()
	shape, err := p.reader.Read(ctx, inputPath, vf.Format)
	if err != nil {
		return fail("read", err)
	}
	defer func() {
		if rerr := p.kernel.Release(context.WithoutCancel(ctx), shape); rerr != nil {
			log.Warn().Err(rerr).Msg("shape release failed")
		}
	}()
	timings.Read = time.Since(stageStart)
	p.transition(req.ID, &state, domain.StateRead)

	// Step 4: Tessellate
	stageStart = time.Now()
	triangles, err := p.mesher.Mesh(ctx, shape)
	if err != nil {
		return fail("mesh", err)
	}
	timings.Mesh = time.Since(stageStart)
	p.transition(req.ID, &state, domain.StateMeshed)

	// Step 5: Write and verify the STL
	outputName := domain.StlFilename(req.Filename)
	outputPath := filepath.Join(workDir, outputName)
	stageStart = time.Now()
	if err := p.writer.Write(ctx, shape, outputPath, req.ASCIIOutput); err != nil {
		return fail("write", err)
	}
	timings.Write = time.Since(stageStart)
	p.transition(req.ID, &state, domain.StateWritten)

	// Step 6: Collect the artifact before the workspace goes away
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return fail("write", domain.StlWriteError("failed to collect output file", err))
	}
	p.transition(req.ID, &state, domain.StateSucceeded)

	result := &domain.ConversionResult{
		ID:            req.ID,
		Filename:      req.Filename,
		OutputName:    outputName,
		Format:        vf.Format,
		Data:          data,
		TriangleCount: triangles,
		SizeBytes:     int64(len(data)),
		Duration:      time.Since(start),
		Timings:       timings,
	}

	log.Info().
		Str("filename", req.Filename).
		Str("output", outputName).
		Int("triangles", triangles).
		Int64("stl_bytes", result.SizeBytes).
		Dur("duration", result.Duration).
		Msg("conversion succeeded")

	return result, nil
}

// transition advances the state machine and notifies the observer. The
// stage order above only ever requests legal transitions; anything else is
// a programming error worth a loud log line.
func (p *Pipeline) transition(id uuid.UUID, state *domain.State, to domain.State) {
	from := *state
	if !from.CanAdvance(to) {
		p.logger.Error().
			Str("conversion_id", id.String()).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("illegal state transition requested")
		return
	}
	*state = to
	if p.OnTransition != nil {
		p.OnTransition(id, from, to)
	}
}

// Engine reports the kernel backend the pipeline converts with.
func (p *Pipeline) Engine() string {
	return p.kernel.Engine()
}

// Healthy reports whether the kernel session can take work.
func (p *Pipeline) Healthy(ctx context.Context) error {
	if err := p.kernel.Healthy(ctx); err != nil {
		return fmt.Errorf("kernel session: %w", err)
	}
	return nil
}
