// Package kernel drives the geometry kernel that does the actual B-Rep
// work. The production backend runs OCCT's Draw Test Harness (DRAWEXE) as
// a subprocess and scripts it over stdin; the stub backend produces a
// deterministic triangulation for tests and kernel-less deployments.
package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/meshforge/cad-engine/internal/config"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
)

var (
	// ErrStatusNotDone means the exchange reader finished without a done
	// status, so no shape was transferred.
	ErrStatusNotDone = errors.New("kernel: exchange status not done")
	// ErrNullShape means the reader transferred but the resulting shape has
	// no geometry to mesh.
	ErrNullShape = errors.New("kernel: resulting shape is null")
	// ErrMeshIncomplete means tessellation ran but did not cover the shape.
	ErrMeshIncomplete = errors.New("kernel: tessellation incomplete")
	// ErrSessionClosed means the kernel session is gone and cannot take ops.
	ErrSessionClosed = errors.New("kernel: session closed")
)

// Shape is an opaque handle to a loaded model inside a kernel session.
type Shape struct {
	// Name identifies the shape inside the session.
	Name string
	// Roots is the transferable root count the reader reported. Logged only.
	Roots int
	// Faces is how many faces the shape carries.
	Faces int
}

// TessellationInfo reports the outcome of a tessellation pass.
type TessellationInfo struct {
	Triangles int
	Nodes     int
	// Complete is the kernel's explicit completion flag. Callers must not
	// infer completion from a non-zero triangle count alone.
	Complete bool
}

// Kernel is the contract both backends satisfy. Load parses an exchange
// file into a shape, Tessellate meshes it with the given deflections
// (linear is an absolute chord distance, angular is in radians), WriteSTL
// serializes the triangulation, Release frees the shape handle, and Close
// ends the session.
type Kernel interface {
	Load(ctx context.Context, path string, format domain.Format) (*Shape, error)
	Tessellate(ctx context.Context, shape *Shape, linear, angular float64) (*TessellationInfo, error)
	WriteSTL(ctx context.Context, shape *Shape, outputPath string, ascii bool) error
	Release(ctx context.Context, shape *Shape) error
	Healthy(ctx context.Context) error
	Engine() string
	Close() error
}

// New builds the kernel selected by configuration.
func New(cfg config.KernelConfig, logger *observability.Logger) (Kernel, error) {
	switch cfg.Backend {
	case "occt":
		return NewDrawexeSession(cfg, logger)
	case "stub":
		return NewStub(logger), nil
	default:
		return nil, fmt.Errorf("unknown kernel backend %q", cfg.Backend)
	}
}

// EngineName reports the engine label a backend identifies as, without
// starting a session.
func EngineName(backend string) string {
	switch backend {
	case "occt":
		return "opencascade"
	case "stub":
		return "stub"
	default:
		return backend
	}
}
