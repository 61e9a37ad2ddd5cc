package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshforge/cad-engine/internal/convert"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/kernel"
	"github.com/meshforge/cad-engine/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       "error",
		Output:      io.Discard,
		ServiceName: "test",
	})
}

func stepUpload() []byte {
	return []byte("ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\nENDSEC;\nEND-ISO-10303-21;\n")
}

// newRiggedService builds a bare service over a stub kernel the test can
// break before the request goes in.
func newRiggedService(t *testing.T, rig func(*kernel.Stub)) *convert.Service {
	t.Helper()
	logger := testLogger()
	k := kernel.NewStub(logger)
	if rig != nil {
		rig(k)
	}
	pipeline := convert.NewPipeline(convert.PipelineConfig{
		WorkDir:           filepath.Join(t.TempDir(), "work"),
		MaxFileSizeBytes:  1 << 20,
		LinearDeflection:  0.1,
		AngularDeflection: 0.5,
	}, k, logger)
	return convert.NewService(pipeline, convert.ServiceOptions{}, logger)
}

func multipartRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/convert/step-to-stl", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doConvert(t *testing.T, svc *convert.Service, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	h := NewConvertHandler(testLogger(), svc, 1<<20)
	rec := httptest.NewRecorder()
	h.ConvertFile(rec, multipartRequest(t, filename, content))
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestConvertFile_KernelReadFailure(t *testing.T) {
	svc := newRiggedService(t, func(k *kernel.Stub) {
		k.LoadErr = kernel.ErrNullShape
	})

	rec := doConvert(t, svc, "bracket.step", stepUpload())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, "step_read", body["error"])
	assert.Equal(t, "conversion failed", body["message"])
}

func TestConvertFile_MeshingFailure(t *testing.T) {
	svc := newRiggedService(t, func(k *kernel.Stub) {
		k.TessellateIncomplete = true
	})

	rec := doConvert(t, svc, "bracket.step", stepUpload())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "meshing", errorBody(t, rec)["error"])
}

func TestConvertFile_MissingArtifact(t *testing.T) {
	svc := newRiggedService(t, func(k *kernel.Stub) {
		k.SkipArtifact = true
	})

	rec := doConvert(t, svc, "bracket.step", stepUpload())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "stl_write", errorBody(t, rec)["error"])
}

func TestConvertFile_DownloadHeaders(t *testing.T) {
	svc := newRiggedService(t, nil)

	rec := doConvert(t, svc, "housing.stp", stepUpload())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "model/stl", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="housing.stl"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "housing.stp", rec.Header().Get("X-Original-Filename"))
	assert.Equal(t, "stub", rec.Header().Get("X-Conversion-Engine"))
}

func TestStatusForKind(t *testing.T) {
	cases := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.ErrKindInvalidFileType, http.StatusBadRequest},
		{domain.ErrKindFileSizeExceeded, http.StatusBadRequest},
		{domain.ErrKindStepRead, http.StatusUnprocessableEntity},
		{domain.ErrKindMeshing, http.StatusUnprocessableEntity},
		{domain.ErrKindStlWrite, http.StatusInternalServerError},
		{domain.ErrKindIO, http.StatusInternalServerError},
		{domain.ErrKindConversion, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForKind(tc.kind), "kind %s", tc.kind)
	}
}

func TestWriteConversionError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeConversionError(rec, io.ErrUnexpectedEOF)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", errorBody(t, rec)["error"])
}

func TestHealth_DegradedWhenKernelDown(t *testing.T) {
	logger := testLogger()
	k := kernel.NewStub(logger)
	pipeline := convert.NewPipeline(convert.PipelineConfig{
		WorkDir:           filepath.Join(t.TempDir(), "work"),
		MaxFileSizeBytes:  1 << 20,
		LinearDeflection:  0.1,
		AngularDeflection: 0.5,
	}, k, logger)
	svc := convert.NewService(pipeline, convert.ServiceOptions{}, logger)
	h := NewHealthHandler(logger, svc, nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, k.Close())

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", errorBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", errorBody(t, rec)["status"])
	assert.Equal(t, "kernel session unavailable", errorBody(t, rec)["detail"])
}
