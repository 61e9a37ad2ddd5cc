package convert

import (
	"context"
	"fmt"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/kernel"
	"github.com/meshforge/cad-engine/internal/observability"
)

// ShapeMesher drives kernel tessellation with the process-wide deflection
// pair. The kernel's completion flag decides success; a non-zero triangle
// count alone never does.
type ShapeMesher struct {
	kernel  kernel.Kernel
	linear  float64
	angular float64
	logger  *observability.Logger
}

// NewShapeMesher creates a mesher. linear is the absolute chord distance
// cap, angular the normal deviation cap in radians.
func NewShapeMesher(k kernel.Kernel, linear, angular float64, logger *observability.Logger) *ShapeMesher {
	return &ShapeMesher{kernel: k, linear: linear, angular: angular, logger: logger}
}

// Mesh tessellates the shape and returns the triangle count.
func (m *ShapeMesher) Mesh(ctx context.Context, shape *kernel.Shape) (int, error) {
	info, err := m.kernel.Tessellate(ctx, shape, m.linear, m.angular)
	if err != nil {
		return 0, domain.MeshingError("tessellation failed", err)
	}
	if !info.Complete {
		return 0, domain.MeshingError(
			fmt.Sprintf("tessellation incomplete after %d triangles", info.Triangles),
			kernel.ErrMeshIncomplete)
	}

	m.logger.Debug().
		Str("shape", shape.Name).
		Int("triangles", info.Triangles).
		Int("nodes", info.Nodes).
		Float64("linear_deflection", m.linear).
		Float64("angular_deflection", m.angular).
		Msg("shape tessellated")

	return info.Triangles, nil
}
