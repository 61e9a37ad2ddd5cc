package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CAD exchange formats accepted for conversion
type Format string

const (
	FormatSTEP Format = "step"
	FormatIGES Format = "iges"
)

// SupportedExtensions maps accepted filename suffixes to their format.
var SupportedExtensions = map[string]Format{
	".step": FormatSTEP,
	".stp":  FormatSTEP,
	".iges": FormatIGES,
	".igs":  FormatIGES,
}

// StepSignatures are the content markers a STEP/IGES exchange file must
// carry within its first bytes. Both part 21 and part 28 encodings count.
var StepSignatures = []string{
	"ISO-10303-21;",
	"ISO-10303-28;",
}

// SignatureWindow is how many leading bytes are searched for a signature.
const SignatureWindow = 512

// FormatForFilename resolves the format from a filename's lowercase
// extension. The second return is false for extensions outside the
// allow-set.
func FormatForFilename(filename string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	f, ok := SupportedExtensions[ext]
	return f, ok
}

// StlFilename derives the output filename from the uploaded one,
// replacing the exchange extension with .stl.
func StlFilename(original string) string {
	base := filepath.Base(original)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "model"
	}
	return stem + ".stl"
}

// ValidatedFile is the outcome of a successful validation pass.
type ValidatedFile struct {
	Extension string
	Format    Format
	SizeBytes int64
}

// ConversionRequest carries one file through the pipeline.
type ConversionRequest struct {
	ID       uuid.UUID
	Filename string
	Data     []byte
	// ASCIIOutput selects ASCII STL serialization. Binary is the default.
	ASCIIOutput bool
}

// StageTimings records how long each pipeline stage ran.
type StageTimings struct {
	Validate time.Duration
	Read     time.Duration
	Mesh     time.Duration
	Write    time.Duration
}

// ConversionResult is the successful outcome of a pipeline run. Data holds
// the finished STL artifact; the pipeline's temporary files are gone by the
// time a result is returned.
type ConversionResult struct {
	ID            uuid.UUID
	Filename      string
	OutputName    string
	Format        Format
	Data          []byte
	TriangleCount int
	SizeBytes     int64
	Duration      time.Duration
	Timings       StageTimings
}

// Pipeline states. A conversion moves strictly forward; Failed is terminal
// and reachable from every non-terminal state.
type State string

const (
	StateIdle      State = "idle"
	StateValidated State = "validated"
	StateRead      State = "read"
	StateMeshed    State = "meshed"
	StateWritten   State = "written"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// next is the forward transition table.
var next = map[State]State{
	StateIdle:      StateValidated,
	StateValidated: StateRead,
	StateRead:      StateMeshed,
	StateMeshed:    StateWritten,
	StateWritten:   StateSucceeded,
}

// CanAdvance reports whether to is the legal forward step from s.
func (s State) CanAdvance(to State) bool {
	if to == StateFailed {
		return !s.Terminal()
	}
	return next[s] == to
}

// Terminal reports whether the state ends a conversion.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
