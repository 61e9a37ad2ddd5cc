// Package rpc provides the Connect service surface of the CAD engine.
package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/meshforge/cad-engine/internal/convert"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
)

// ConvertProcedure is the Connect route of the conversion call.
const ConvertProcedure = "/cad.v1.ConversionService/Convert"

// ConvertRequest is the Connect request message.
type ConvertRequest struct {
	Filename    string `json:"filename"`
	FileBase64  string `json:"file_base64"`
	ASCIIOutput bool   `json:"ascii_output,omitempty"`
}

// ConvertResponse is the Connect response message.
type ConvertResponse struct {
	StlBase64     string `json:"stl_base64"`
	StlSize       int64  `json:"stl_size"`
	StlFilename   string `json:"stl_filename"`
	TriangleCount int    `json:"triangle_count"`
}

// ConversionService implements the Connect conversion service. It mirrors
// the base64 HTTP endpoint for RPC clients.
type ConversionService struct {
	logger  *observability.Logger
	service *convert.Service
}

// NewConversionService creates a new conversion service.
func NewConversionService(logger *observability.Logger, service *convert.Service) *ConversionService {
	return &ConversionService{logger: logger, service: service}
}

// Convert handles the Connect conversion call.
func (s *ConversionService) Convert(ctx context.Context, req *connect.Request[ConvertRequest]) (*connect.Response[ConvertResponse], error) {
	msg := req.Msg

	if msg.Filename == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("filename is required"))
	}
	if msg.FileBase64 == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("file_base64 is required"))
	}

	data, err := base64.StdEncoding.DecodeString(msg.FileBase64)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("file_base64 is not valid base64"))
	}

	outcome, err := s.service.Convert(ctx, domain.ConversionRequest{
		Filename:    msg.Filename,
		Data:        data,
		ASCIIOutput: msg.ASCIIOutput,
	})
	if err != nil {
		return nil, connect.NewError(codeForError(err), err)
	}
	result := outcome.Result

	return connect.NewResponse(&ConvertResponse{
		StlBase64:     base64.StdEncoding.EncodeToString(result.Data),
		StlSize:       result.SizeBytes,
		StlFilename:   result.OutputName,
		TriangleCount: result.TriangleCount,
	}), nil
}

// codeForError maps conversion failures onto Connect codes the same way the
// HTTP surface maps them onto statuses.
func codeForError(err error) connect.Code {
	kind, ok := domain.CauseKind(err)
	if !ok {
		return connect.CodeInternal
	}
	switch kind {
	case domain.ErrKindInvalidFileType, domain.ErrKindFileSizeExceeded:
		return connect.CodeInvalidArgument
	case domain.ErrKindStepRead, domain.ErrKindMeshing:
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeInternal
	}
}

// jsonCodec marshals the plain request and response structs. The stock json
// codec only accepts generated protobuf messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

func (jsonCodec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }

// NewConversionHandler builds the Connect unary handler for the conversion
// procedure. The returned path is the full procedure route to mount it at.
func NewConversionHandler(logger *observability.Logger, service *convert.Service) (string, http.Handler) {
	svc := NewConversionService(logger, service)
	return ConvertProcedure, connect.NewUnaryHandler(
		ConvertProcedure,
		svc.Convert,
		connect.WithCodec(jsonCodec{}),
	)
}
