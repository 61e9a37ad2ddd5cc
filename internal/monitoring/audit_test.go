package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
)

func captureLogger() (*observability.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{
		Level:       "info",
		Format:      "json",
		Output:      &buf,
		ServiceName: "test",
	})
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestAuditLogger_LogEventDefaultsIdentity(t *testing.T) {
	logger, buf := captureLogger()
	audit := NewAuditLogger(logger)

	convID := uuid.New()
	audit.LogEvent(context.Background(), AuditEvent{
		ConversionID: convID,
		Action:       ActionReceived,
		Filename:     "bracket.step",
	})

	entry := decodeLine(t, buf)
	assert.Equal(t, "audit event", entry["message"])
	assert.Equal(t, convID.String(), entry["conversion_id"])
	assert.Equal(t, "received", entry["action"])
	assert.Equal(t, "bracket.step", entry["filename"])

	eventID, ok := entry["event_id"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(eventID)
	assert.NoError(t, err, "event_id should default to a fresh uuid")
}

func TestAuditLogger_LogTransition(t *testing.T) {
	logger, buf := captureLogger()
	audit := NewAuditLogger(logger)

	audit.LogTransition(context.Background(), uuid.New(), domain.StateValidated, domain.StateRead)

	entry := decodeLine(t, buf)
	assert.Equal(t, "state_changed", entry["action"])

	detail, ok := entry["detail"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(domain.StateValidated), detail["from"])
	assert.Equal(t, string(domain.StateRead), detail["to"])
}

func TestAuditLogger_LogFailedIncludesCauseKind(t *testing.T) {
	logger, buf := captureLogger()
	audit := NewAuditLogger(logger)

	err := domain.ConversionError("conversion failed during mesh",
		domain.MeshingError("tessellation incomplete", nil))
	audit.LogFailed(context.Background(), uuid.New(), "bracket.step", err)

	entry := decodeLine(t, buf)
	assert.Equal(t, "failed", entry["action"])

	detail, ok := entry["detail"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(domain.ErrKindMeshing), detail["error_kind"])
	assert.Contains(t, detail["error"], "tessellation incomplete")
}

func TestAuditLogger_LogSucceeded(t *testing.T) {
	logger, buf := captureLogger()
	audit := NewAuditLogger(logger)

	audit.LogSucceeded(context.Background(), uuid.New(), "bracket.step", 1204, 60284)

	entry := decodeLine(t, buf)
	assert.Equal(t, "succeeded", entry["action"])

	detail, ok := entry["detail"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1204), detail["triangles"])
	assert.Equal(t, float64(60284), detail["stl_bytes"])
}
