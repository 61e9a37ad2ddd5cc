package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/meshforge/cad-engine/internal/convert"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
)

// multipartMemory caps how much of an upload is held in memory before the
// form parser spills to disk.
const multipartMemory = 32 << 20

// ConvertHandler serves the conversion endpoints.
type ConvertHandler struct {
	logger  *observability.Logger
	service *convert.Service
	// maxBodyBytes bounds the request body. It sits above the validator's
	// own cap so oversized uploads still get the size error message rather
	// than a connection reset.
	maxBodyBytes int64
}

// NewConvertHandler creates a new conversion handler.
func NewConvertHandler(logger *observability.Logger, service *convert.Service, maxFileSizeBytes int64) *ConvertHandler {
	return &ConvertHandler{
		logger:       logger,
		service:      service,
		maxBodyBytes: 2*maxFileSizeBytes + multipartMemory,
	}
}

// ConvertFile handles POST /convert/step-to-stl. The response is the binary
// STL artifact as a download.
func (h *ConvertHandler) ConvertFile(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.Convert(r.Context(), domain.ConversionRequest{
		Filename: filename,
		Data:     data,
	})
	if err != nil {
		writeConversionError(w, err)
		return
	}
	result := outcome.Result

	w.Header().Set("Content-Type", "model/stl")
	w.Header().Set("Content-Length", strconv.FormatInt(result.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.OutputName))
	w.Header().Set("X-Original-Filename", result.Filename)
	w.Header().Set("X-Conversion-Engine", h.service.Engine())
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}

// ConvertBase64Response is the JSON shape of the base64 endpoint.
type ConvertBase64Response struct {
	StlBase64     string `json:"stl_base64"`
	StlSize       int64  `json:"stl_size"`
	StlFilename   string `json:"stl_filename"`
	TriangleCount int    `json:"triangle_count"`
}

// ConvertBase64 handles POST /convert/step-to-stl-base64. Same pipeline,
// JSON response for clients that cannot stream a download.
func (h *ConvertHandler) ConvertBase64(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.Convert(r.Context(), domain.ConversionRequest{
		Filename: filename,
		Data:     data,
	})
	if err != nil {
		writeConversionError(w, err)
		return
	}
	result := outcome.Result

	writeJSON(w, http.StatusOK, ConvertBase64Response{
		StlBase64:     base64.StdEncoding.EncodeToString(result.Data),
		StlSize:       result.SizeBytes,
		StlFilename:   result.OutputName,
		TriangleCount: result.TriangleCount,
	})
}

// readUpload extracts the multipart file field. On failure the error is
// already written and ok is false.
func (h *ConvertHandler) readUpload(w http.ResponseWriter, r *http.Request) (filename string, data []byte, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "file_size_exceeded", "request body too large",
				fmt.Sprintf("body exceeds the %d byte request limit", tooLarge.Limit))
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form", err.Error())
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing file field", `expected a multipart field named "file"`)
		return "", nil, false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read uploaded file", err.Error())
		return "", nil, false
	}

	return header.Filename, data, true
}
