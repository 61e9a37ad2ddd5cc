package convert

import (
	"context"
	"os"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/kernel"
	"github.com/meshforge/cad-engine/internal/observability"
)

// MeshWriter serializes a tessellated shape to STL. The artifact is
// verified on disk after the kernel call; a write is never trusted on the
// kernel's word alone.
type MeshWriter struct {
	kernel kernel.Kernel
	logger *observability.Logger
}

// NewMeshWriter creates a writer over the given kernel.
func NewMeshWriter(k kernel.Kernel, logger *observability.Logger) *MeshWriter {
	return &MeshWriter{kernel: k, logger: logger}
}

// Write serializes the shape to outputPath. Binary is the default; ascii
// selects ASCII STL.
func (w *MeshWriter) Write(ctx context.Context, shape *kernel.Shape, outputPath string, ascii bool) error {
	if err := w.kernel.WriteSTL(ctx, shape, outputPath, ascii); err != nil {
		return domain.StlWriteError("kernel failed to serialize mesh", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return domain.StlWriteError("output file missing after write", err)
	}
	if info.Size() == 0 {
		return domain.StlWriteError("output file empty after write", nil)
	}

	w.logger.Debug().
		Str("output", outputPath).
		Int64("size_bytes", info.Size()).
		Bool("ascii", ascii).
		Msg("mesh written")

	return nil
}
