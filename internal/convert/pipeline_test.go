package convert

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/kernel"
	"github.com/meshforge/cad-engine/internal/observability"
	"github.com/meshforge/cad-engine/internal/stl"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       "error",
		Output:      io.Discard,
		ServiceName: "test",
	})
}

func stepUpload() []byte {
	return []byte("ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\nENDSEC;\nEND-ISO-10303-21;\n")
}

// newStubPipeline builds a pipeline over a stub kernel with its own work
// directory, so tests can assert nothing is left behind.
func newStubPipeline(t *testing.T) (*Pipeline, *kernel.Stub, string) {
	t.Helper()
	workDir := filepath.Join(t.TempDir(), "work")
	k := kernel.NewStub(testLogger())
	p := NewPipeline(PipelineConfig{
		WorkDir:           workDir,
		MaxFileSizeBytes:  1 << 20,
		LinearDeflection:  0.1,
		AngularDeflection: 0.5,
	}, k, testLogger())
	return p, k, workDir
}

func assertWorkDirEmpty(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_UnitCubeRoundTrip(t *testing.T) {
	p, _, workDir := newStubPipeline(t)

	res, err := p.Convert(context.Background(), domain.ConversionRequest{
		Filename: "cube.step",
		Data:     stepUpload(),
	})
	require.NoError(t, err)

	assert.Equal(t, "cube.stl", res.OutputName)
	assert.Equal(t, domain.FormatSTEP, res.Format)
	assert.Equal(t, 12, res.TriangleCount)
	assert.Equal(t, stl.ExpectedSize(12), res.SizeBytes)
	assert.Equal(t, int64(684), res.SizeBytes)

	mesh, err := stl.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 12, mesh.TriangleCount())

	assertWorkDirEmpty(t, workDir)
}

func TestPipeline_StateTransitions(t *testing.T) {
	p, _, _ := newStubPipeline(t)

	var seen []domain.State
	p.OnTransition = func(id uuid.UUID, from, to domain.State) {
		seen = append(seen, to)
	}

	_, err := p.Convert(context.Background(), domain.ConversionRequest{
		Filename: "cube.step",
		Data:     stepUpload(),
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.State{
		domain.StateValidated,
		domain.StateRead,
		domain.StateMeshed,
		domain.StateWritten,
		domain.StateSucceeded,
	}, seen)
}

func TestPipeline_ValidationFailure(t *testing.T) {
	p, _, workDir := newStubPipeline(t)

	var seen []domain.State
	p.OnTransition = func(id uuid.UUID, from, to domain.State) {
		seen = append(seen, to)
	}

	_, err := p.Convert(context.Background(), domain.ConversionRequest{
		Filename: "cube.stl",
		Data:     stepUpload(),
	})
	require.Error(t, err)

	assert.True(t, domain.IsKind(err, domain.ErrKindConversion))
	assert.True(t, domain.IsKind(err, domain.ErrKindInvalidFileType))
	kind, ok := domain.CauseKind(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindInvalidFileType, kind)

	assert.Equal(t, []domain.State{domain.StateFailed}, seen)
	assertWorkDirEmpty(t, workDir)
}

func TestPipeline_NullShapeLeavesNothingBehind(t *testing.T) {
	p, k, workDir := newStubPipeline(t)
	k.LoadErr = kernel.ErrNullShape

	_, err := p.Convert(context.Background(), domain.ConversionRequest{
		Filename: "empty.step",
		Data:     stepUpload(),
	})
	require.Error(t, err)

	kind, ok := domain.CauseKind(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindStepRead, kind)

	assertWorkDirEmpty(t, workDir)
}

func TestPipeline_MeshIncomplete(t *testing.T) {
	p, k, _ := newStubPipeline(t)
	k.TessellateIncomplete = true

	var seen []domain.State
	p.OnTransition = func(id uuid.UUID, from, to domain.State) {
		seen = append(seen, to)
	}

	_, err := p.Convert(context.Background(), domain.ConversionRequest{
		Filename: "cube.step",
		Data:     stepUpload(),
	})
	require.Error(t, err)

	kind, ok := domain.CauseKind(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindMeshing, kind)

	// Read was reached; the failure happened at the mesh stage.
	assert.Equal(t, []domain.State{
		domain.StateValidated,
		domain.StateRead,
		domain.StateFailed,
	}, seen)
}

func TestPipeline_WriteVerificationFailure(t *testing.T) {
	p, k, workDir := newStubPipeline(t)
	// The kernel claims success but writes nothing; the writer must catch it.
	k.SkipArtifact = true

	_, err := p.Convert(context.Background(), domain.ConversionRequest{
		Filename: "cube.step",
		Data:     stepUpload(),
	})
	require.Error(t, err)

	kind, ok := domain.CauseKind(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindStlWrite, kind)

	assertWorkDirEmpty(t, workDir)
}

func TestPipeline_Idempotence(t *testing.T) {
	p, _, _ := newStubPipeline(t)
	req := domain.ConversionRequest{Filename: "cube.step", Data: stepUpload()}

	first, err := p.Convert(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.TriangleCount, second.TriangleCount)
	assert.Equal(t, first.SizeBytes, second.SizeBytes)
	assert.Equal(t, first.Data, second.Data)
}

func TestPipeline_ReleasesShape(t *testing.T) {
	p, k, _ := newStubPipeline(t)

	_, err := p.Convert(context.Background(), domain.ConversionRequest{
		Filename: "cube.step",
		Data:     stepUpload(),
	})
	require.NoError(t, err)

	assert.Len(t, k.Released(), 1)
}

func TestPipeline_ASCIIOutput(t *testing.T) {
	p, _, _ := newStubPipeline(t)

	res, err := p.Convert(context.Background(), domain.ConversionRequest{
		Filename:    "cube.step",
		Data:        stepUpload(),
		ASCIIOutput: true,
	})
	require.NoError(t, err)

	assert.True(t, stl.IsASCII(res.Data))
}

func TestPipeline_CancelledContext(t *testing.T) {
	p, _, workDir := newStubPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Convert(ctx, domain.ConversionRequest{
		Filename: "cube.step",
		Data:     stepUpload(),
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrKindConversion))

	assertWorkDirEmpty(t, workDir)
}
