package validate

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       "error",
		Output:      io.Discard,
		ServiceName: "test",
	})
}

// stepBody returns minimal content carrying a part 21 signature.
func stepBody() []byte {
	return []byte("ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\nENDSEC;\nEND-ISO-10303-21;\n")
}

func TestValidate_AcceptedExtensions(t *testing.T) {
	v := NewFileValidator(1<<20, testLogger())

	cases := []struct {
		filename string
		format   domain.Format
	}{
		{"part.step", domain.FormatSTEP},
		{"part.stp", domain.FormatSTEP},
		{"part.iges", domain.FormatIGES},
		{"part.igs", domain.FormatIGES},
		{"PART.STEP", domain.FormatSTEP},
		{"Assembly.Igs", domain.FormatIGES},
	}

	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			vf, err := v.Validate(stepBody(), tc.filename)
			require.NoError(t, err)
			assert.Equal(t, tc.format, vf.Format)
			assert.Equal(t, int64(len(stepBody())), vf.SizeBytes)
		})
	}
}

func TestValidate_RejectsUnsupportedExtensions(t *testing.T) {
	v := NewFileValidator(1<<20, testLogger())

	// Valid signature content must not rescue a bad extension.
	for _, filename := range []string{"part.stl", "part.pdf", "part.txt", "part", "part.step.gz"} {
		t.Run(filename, func(t *testing.T) {
			_, err := v.Validate(stepBody(), filename)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.ErrKindInvalidFileType))
		})
	}
}

func TestValidate_SignatureRequired(t *testing.T) {
	v := NewFileValidator(1<<20, testLogger())

	t.Run("no signature rejected", func(t *testing.T) {
		_, err := v.Validate([]byte("solid cube\nendsolid cube\n"), "cube.step")
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrKindInvalidFileType))
	})

	t.Run("part 28 accepted", func(t *testing.T) {
		body := []byte("<?xml version=\"1.0\"?>\nISO-10303-28;\n")
		_, err := v.Validate(body, "part.stp")
		assert.NoError(t, err)
	})

	t.Run("signature inside window accepted", func(t *testing.T) {
		body := append(bytes.Repeat([]byte("*"), 400), []byte("ISO-10303-21;")...)
		_, err := v.Validate(body, "part.step")
		assert.NoError(t, err)
	})

	t.Run("signature past window rejected", func(t *testing.T) {
		body := append(bytes.Repeat([]byte("*"), domain.SignatureWindow), []byte("ISO-10303-21;")...)
		_, err := v.Validate(body, "part.step")
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrKindInvalidFileType))
	})
}

func TestValidate_SizeCap(t *testing.T) {
	const maxBytes = int64(1 << 20) // 1MB

	t.Run("at cap accepted", func(t *testing.T) {
		v := NewFileValidator(maxBytes, testLogger())
		body := stepBody()
		body = append(body, bytes.Repeat([]byte(" "), int(maxBytes)-len(body))...)
		require.Len(t, body, int(maxBytes))

		_, err := v.Validate(body, "big.step")
		assert.NoError(t, err)
	})

	t.Run("over cap rejected with megabyte message", func(t *testing.T) {
		v := NewFileValidator(maxBytes, testLogger())
		body := stepBody()
		body = append(body, bytes.Repeat([]byte(" "), int(maxBytes)+int(maxBytes)/2-len(body))...)

		_, err := v.Validate(body, "big.step")
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrKindFileSizeExceeded))
		assert.Contains(t, err.Error(), "1.50MB exceeds maximum allowed size 1.00MB")
	})
}

func TestValidate_CheckOrder(t *testing.T) {
	v := NewFileValidator(16, testLogger())

	t.Run("extension before size", func(t *testing.T) {
		body := strings.Repeat("x", 64)
		_, err := v.Validate([]byte(body), "huge.stl")
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrKindInvalidFileType))
	})

	t.Run("size before signature", func(t *testing.T) {
		body := strings.Repeat("x", 64)
		_, err := v.Validate([]byte(body), "huge.step")
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrKindFileSizeExceeded))
	})
}
