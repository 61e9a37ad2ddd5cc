package kernel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshforge/cad-engine/internal/config"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/stl"
)

// TestDrawexeSession_RoundTrip drives a real DRAWEXE process. The session
// models a box and exports it through the STEP writer, then the test reloads
// that file and walks the same load/mesh/write path the pipeline uses.
// Needs the binary installed; go test -short skips it.
func TestDrawexeSession_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping drawexe test in short mode")
	}
	if _, err := findDrawexe(""); err != nil {
		t.Skip("DRAWEXE not installed")
	}

	s, err := NewDrawexeSession(config.KernelConfig{
		Backend:        "occt",
		StartupTimeout: 30 * time.Second,
		OpTimeout:      time.Minute,
	}, testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Healthy(ctx))
	assert.Equal(t, "opencascade", s.Engine())

	dir := t.TempDir()
	stepPath := filepath.Join(dir, "box.step")
	_, err = s.eval(ctx, "box b 10 20 30")
	require.NoError(t, err)
	_, err = s.eval(ctx, fmt.Sprintf("testwritestep {%s} b", stepPath))
	require.NoError(t, err)

	shape, err := s.Load(ctx, stepPath, domain.FormatSTEP)
	require.NoError(t, err)
	assert.Equal(t, 6, shape.Faces)

	info, err := s.Tessellate(ctx, shape, 0.1, 0.5)
	require.NoError(t, err)
	assert.True(t, info.Complete)
	assert.GreaterOrEqual(t, info.Triangles, 12)

	stlPath := filepath.Join(dir, "box.stl")
	require.NoError(t, s.WriteSTL(ctx, shape, stlPath, false))

	f, err := os.Open(stlPath)
	require.NoError(t, err)
	defer f.Close()
	mesh, err := stl.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, info.Triangles, mesh.TriangleCount())

	require.NoError(t, s.Release(ctx, shape))

	// A file the exchange reader cannot parse surfaces as a status failure.
	garbage := filepath.Join(dir, "garbage.step")
	require.NoError(t, os.WriteFile(garbage, []byte("not an exchange file"), 0o644))
	_, err = s.Load(ctx, garbage, domain.FormatSTEP)
	assert.ErrorIs(t, err, ErrStatusNotDone)
}
