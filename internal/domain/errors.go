package domain

import (
	"errors"
	"fmt"
)

// Error kinds for conversion-specific errors
type ErrorKind string

const (
	ErrKindInvalidFileType  ErrorKind = "invalid_file_type"
	ErrKindFileSizeExceeded ErrorKind = "file_size_exceeded"
	ErrKindStepRead         ErrorKind = "step_read"
	ErrKindMeshing          ErrorKind = "meshing"
	ErrKindStlWrite         ErrorKind = "stl_write"
	ErrKindConversion       ErrorKind = "conversion"
	ErrKindConfig           ErrorKind = "config"
	ErrKindIO               ErrorKind = "io"
)

// ConversionFailure represents a conversion error with its kind and cause
type ConversionFailure struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ConversionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *ConversionFailure) Unwrap() error {
	return e.Err
}

// NewFailure creates a new conversion failure
func NewFailure(kind ErrorKind, message string, err error) *ConversionFailure {
	return &ConversionFailure{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func InvalidFileTypeError(message string) *ConversionFailure {
	return NewFailure(ErrKindInvalidFileType, message, nil)
}

// FileSizeExceededError reports the actual size and the configured cap in megabytes.
func FileSizeExceededError(sizeBytes, maxBytes int64) *ConversionFailure {
	const mb = 1 << 20
	return NewFailure(ErrKindFileSizeExceeded,
		fmt.Sprintf("%.2fMB exceeds maximum allowed size %.2fMB",
			float64(sizeBytes)/mb, float64(maxBytes)/mb), nil)
}

func StepReadError(message string, err error) *ConversionFailure {
	return NewFailure(ErrKindStepRead, message, err)
}

func MeshingError(message string, err error) *ConversionFailure {
	return NewFailure(ErrKindMeshing, message, err)
}

func StlWriteError(message string, err error) *ConversionFailure {
	return NewFailure(ErrKindStlWrite, message, err)
}

// ConversionError wraps a stage failure at the pipeline boundary. The
// original kind stays reachable through the error chain.
func ConversionError(message string, err error) *ConversionFailure {
	return NewFailure(ErrKindConversion, message, err)
}

func ConfigError(message string, err error) *ConversionFailure {
	return NewFailure(ErrKindConfig, message, err)
}

func IOError(message string, err error) *ConversionFailure {
	return NewFailure(ErrKindIO, message, err)
}

// KindOf returns the kind of the outermost ConversionFailure in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var cf *ConversionFailure
	if errors.As(err, &cf) {
		return cf.Kind, true
	}
	return "", false
}

// IsKind reports whether any ConversionFailure in err's chain has the given
// kind. The pipeline wraps stage errors, so the kind of interest may sit
// below an ErrKindConversion wrapper.
func IsKind(err error, kind ErrorKind) bool {
	var cf *ConversionFailure
	for errors.As(err, &cf) {
		if cf.Kind == kind {
			return true
		}
		err = cf.Err
		if err == nil {
			return false
		}
	}
	return false
}

// CauseKind returns the innermost ConversionFailure kind in err's chain,
// looking through pipeline-boundary wrappers to the originating stage.
func CauseKind(err error) (ErrorKind, bool) {
	kind, ok := KindOf(err)
	if !ok {
		return "", false
	}
	var cf *ConversionFailure
	for errors.As(err, &cf) {
		kind = cf.Kind
		err = cf.Err
		if err == nil {
			break
		}
	}
	return kind, true
}
