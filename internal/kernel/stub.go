package kernel

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
	"github.com/meshforge/cad-engine/internal/stl"
)

// Stub is a deterministic in-process kernel. Whatever exchange file it is
// given, it produces the same unit cube triangulation. Deployments without
// OCCT run on it, and the pipeline tests drive their error paths through
// its injection fields.
type Stub struct {
	logger *observability.Logger

	// Failure injection. Zero values mean normal behavior.
	LoadErr              error
	TessellateErr        error
	TessellateIncomplete bool
	WriteErr             error
	// SkipArtifact makes WriteSTL report success without touching disk.
	SkipArtifact bool

	shapeSeq uint64

	mu       sync.Mutex
	released []string
	closed   bool
}

// NewStub creates a stub kernel.
func NewStub(logger *observability.Logger) *Stub {
	return &Stub{logger: logger}
}

// Load reads the file to honor the missing-file contract and hands out a
// canned cube shape.
func (s *Stub) Load(ctx context.Context, path string, format domain.Format) (*Shape, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusNotDone, err)
	}
	name := fmt.Sprintf("stub_%d", atomic.AddUint64(&s.shapeSeq, 1))
	return &Shape{Name: name, Roots: 1, Faces: 6}, nil
}

// Tessellate reports the cube triangulation regardless of deflections.
func (s *Stub) Tessellate(ctx context.Context, shape *Shape, linear, angular float64) (*TessellationInfo, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	if s.TessellateErr != nil {
		return nil, s.TessellateErr
	}
	if shape == nil || shape.Name == "" {
		return nil, ErrNullShape
	}
	if s.TessellateIncomplete {
		return &TessellationInfo{Triangles: 0, Nodes: 0, Complete: false}, nil
	}
	return &TessellationInfo{Triangles: len(unitCube), Nodes: 8, Complete: true}, nil
}

// WriteSTL writes the cube triangulation to outputPath.
func (s *Stub) WriteSTL(ctx context.Context, shape *Shape, outputPath string, ascii bool) error {
	if err := s.alive(); err != nil {
		return err
	}
	if s.WriteErr != nil {
		return s.WriteErr
	}
	if shape == nil || shape.Name == "" {
		return ErrNullShape
	}
	if s.SkipArtifact {
		return nil
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if ascii {
		return stl.EncodeASCII(f, "cube", unitCube)
	}
	return stl.Encode(f, "cad-engine stub", unitCube)
}

// Release records the dropped handle.
func (s *Stub) Release(ctx context.Context, shape *Shape) error {
	if shape == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, shape.Name)
	return nil
}

// Released lists shape names released so far.
func (s *Stub) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.released))
	copy(out, s.released)
	return out
}

// Healthy always succeeds while the stub is open.
func (s *Stub) Healthy(ctx context.Context) error {
	return s.alive()
}

// Engine names the backing kernel.
func (s *Stub) Engine() string { return "stub" }

// Close marks the stub unusable.
func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Stub) alive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// unitCube is the canned triangulation: twelve facets over [0,1]^3 with
// outward normals.
var unitCube = []stl.Triangle{
	// bottom z=0
	{Normal: [3]float32{0, 0, -1}, Vertices: [3][3]float32{{0, 0, 0}, {1, 1, 0}, {1, 0, 0}}},
	{Normal: [3]float32{0, 0, -1}, Vertices: [3][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}}},
	// top z=1
	{Normal: [3]float32{0, 0, 1}, Vertices: [3][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}}},
	{Normal: [3]float32{0, 0, 1}, Vertices: [3][3]float32{{0, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	// front y=0
	{Normal: [3]float32{0, -1, 0}, Vertices: [3][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}}},
	{Normal: [3]float32{0, -1, 0}, Vertices: [3][3]float32{{0, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	// back y=1
	{Normal: [3]float32{0, 1, 0}, Vertices: [3][3]float32{{0, 1, 0}, {1, 1, 1}, {1, 1, 0}}},
	{Normal: [3]float32{0, 1, 0}, Vertices: [3][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}}},
	// left x=0
	{Normal: [3]float32{-1, 0, 0}, Vertices: [3][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}}},
	{Normal: [3]float32{-1, 0, 0}, Vertices: [3][3]float32{{0, 0, 0}, {0, 1, 1}, {0, 1, 0}}},
	// right x=1
	{Normal: [3]float32{1, 0, 0}, Vertices: [3][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}}},
	{Normal: [3]float32{1, 0, 0}, Vertices: [3][3]float32{{1, 0, 0}, {1, 1, 1}, {1, 0, 1}}},
}
