package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSizeExceededError_MessageFormat(t *testing.T) {
	err := FileSizeExceededError(60*1024*1024, 50*1024*1024)

	assert.Equal(t, ErrKindFileSizeExceeded, err.Kind)
	assert.Contains(t, err.Error(), "60.00MB exceeds maximum allowed size 50.00MB")
}

func TestConversionFailure_ErrorFormat(t *testing.T) {
	plain := InvalidFileTypeError("unsupported file extension: .obj")
	assert.Equal(t, "[invalid_file_type] unsupported file extension: .obj", plain.Error())

	wrapped := StepReadError("parse failed", errors.New("truncated entity"))
	assert.Equal(t, "[step_read] parse failed: truncated entity", wrapped.Error())
}

func TestConversionFailure_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := StlWriteError("write failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestKindOf_OutermostKind(t *testing.T) {
	stage := MeshingError("meshing did not complete", nil)
	boundary := ConversionError("conversion failed", stage)

	kind, ok := KindOf(boundary)
	require.True(t, ok)
	assert.Equal(t, ErrKindConversion, kind)

	_, ok = KindOf(errors.New("not a conversion failure"))
	assert.False(t, ok)
}

func TestIsKind_LooksThroughBoundaryWrapper(t *testing.T) {
	stage := StepReadError("no shape in file", nil)
	boundary := ConversionError("conversion failed", stage)

	assert.True(t, IsKind(boundary, ErrKindConversion))
	assert.True(t, IsKind(boundary, ErrKindStepRead))
	assert.False(t, IsKind(boundary, ErrKindMeshing))
}

func TestIsKind_WrappedWithFmt(t *testing.T) {
	stage := MeshingError("tessellation incomplete", nil)
	err := fmt.Errorf("request aborted: %w", ConversionError("conversion failed", stage))

	assert.True(t, IsKind(err, ErrKindMeshing))
}

func TestCauseKind_InnermostStage(t *testing.T) {
	stage := StlWriteError("artifact missing after write", nil)
	boundary := ConversionError("conversion failed", stage)

	kind, ok := CauseKind(boundary)
	require.True(t, ok)
	assert.Equal(t, ErrKindStlWrite, kind)

	// A bare stage error is its own cause.
	kind, ok = CauseKind(stage)
	require.True(t, ok)
	assert.Equal(t, ErrKindStlWrite, kind)
}
