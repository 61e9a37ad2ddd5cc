package domain

import "context"

// Validator screens an inbound file before any kernel work begins
type Validator interface {
	// Validate checks extension, size and content signature, in that order
	Validate(data []byte, filename string) (*ValidatedFile, error)
}

// Converter runs one CAD file through the full conversion pipeline
type Converter interface {
	// Convert turns STEP/IGES bytes into a binary STL artifact. Failures
	// carry ErrKindConversion with the originating stage's kind beneath it.
	Convert(ctx context.Context, req ConversionRequest) (*ConversionResult, error)
}
