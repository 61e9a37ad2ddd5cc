// Package convert runs the conversion pipeline: validate, read, mesh,
// write. Each stage owns one error kind; the pipeline wraps whatever a
// stage returns at its boundary.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/kernel"
	"github.com/meshforge/cad-engine/internal/observability"
)

// GeometryReader loads exchange files through the kernel. Every failure
// mode of this stage, including a recovered kernel fault, surfaces as a
// StepReadError.
type GeometryReader struct {
	kernel kernel.Kernel
	logger *observability.Logger
}

// NewGeometryReader creates a reader over the given kernel.
func NewGeometryReader(k kernel.Kernel, logger *observability.Logger) *GeometryReader {
	return &GeometryReader{kernel: k, logger: logger}
}

// Read parses the exchange file at path into a kernel shape.
func (r *GeometryReader) Read(ctx context.Context, path string, format domain.Format) (shape *kernel.Shape, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, domain.StepReadError(
			fmt.Sprintf("input file %s is not readable", filepath.Base(path)), statErr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			shape = nil
			err = domain.StepReadError(fmt.Sprintf("kernel fault while reading: %v", rec), nil)
		}
	}()

	s, err := r.kernel.Load(ctx, path, format)
	if err != nil {
		switch {
		case errors.Is(err, kernel.ErrStatusNotDone):
			return nil, domain.StepReadError("exchange reader did not reach done status", err)
		case errors.Is(err, kernel.ErrNullShape):
			return nil, domain.StepReadError("file contains no usable geometry", err)
		default:
			return nil, domain.StepReadError("kernel failed to read file", err)
		}
	}

	// Root count is informational only.
	r.logger.Debug().
		Str("shape", s.Name).
		Int("roots", s.Roots).
		Int("faces", s.Faces).
		Msg("geometry read")

	return s, nil
}
