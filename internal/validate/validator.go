package validate

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
)

// FileValidator screens uploads before any kernel work happens. Checks run
// in a fixed order: extension, then size, then content signature. The first
// failing check decides the error; later checks never run.
type FileValidator struct {
	maxSizeBytes int64
	logger       *observability.Logger
}

// NewFileValidator creates a validator with the configured size cap in bytes.
func NewFileValidator(maxSizeBytes int64, logger *observability.Logger) *FileValidator {
	return &FileValidator{
		maxSizeBytes: maxSizeBytes,
		logger:       logger,
	}
}

// Validate checks the upload against the extension allow-set, the size cap,
// and the ISO 10303 signature window.
func (v *FileValidator) Validate(data []byte, filename string) (*domain.ValidatedFile, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, ok := domain.SupportedExtensions[ext]
	if !ok {
		return nil, domain.InvalidFileTypeError(
			fmt.Sprintf("unsupported file extension %q, expected one of .step, .stp, .iges, .igs", ext))
	}

	size := int64(len(data))
	if size > v.maxSizeBytes {
		return nil, domain.FileSizeExceededError(size, v.maxSizeBytes)
	}

	if !hasExchangeSignature(data) {
		return nil, domain.InvalidFileTypeError(
			fmt.Sprintf("file %q does not contain an ISO 10303 exchange signature", filepath.Base(filename)))
	}

	v.logger.Debug().
		Str("filename", filepath.Base(filename)).
		Str("format", string(format)).
		Int64("size_bytes", size).
		Msg("file validated")

	return &domain.ValidatedFile{
		Extension: ext,
		Format:    format,
		SizeBytes: size,
	}, nil
}

// hasExchangeSignature scans the leading bytes for a part 21 or part 28
// marker. Content past the window never counts.
func hasExchangeSignature(data []byte) bool {
	window := data
	if len(window) > domain.SignatureWindow {
		window = window[:domain.SignatureWindow]
	}
	for _, sig := range domain.StepSignatures {
		if bytes.Contains(window, []byte(sig)) {
			return true
		}
	}
	return false
}
