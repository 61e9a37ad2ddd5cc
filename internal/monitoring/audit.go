// Package monitoring provides the conversion audit trail.
package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
)

// Audit actions over a conversion's lifetime.
const (
	ActionReceived     = "received"
	ActionStateChanged = "state_changed"
	ActionCacheHit     = "cache_hit"
	ActionSucceeded    = "succeeded"
	ActionFailed       = "failed"
)

// AuditLogger records conversion lifecycle events to the structured log.
type AuditLogger struct {
	logger *observability.Logger
}

// AuditEvent is one auditable action on a conversion.
type AuditEvent struct {
	ID           uuid.UUID              `json:"id"`
	ConversionID uuid.UUID              `json:"conversion_id"`
	Action       string                 `json:"action"`
	Filename     string                 `json:"filename,omitempty"`
	Detail       map[string]interface{} `json:"detail,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogEvent records an audit event.
func (a *AuditLogger) LogEvent(ctx context.Context, event AuditEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	evt := a.logger.Info().
		Str("event_id", event.ID.String()).
		Str("conversion_id", event.ConversionID.String()).
		Str("action", event.Action)
	if event.Filename != "" {
		evt = evt.Str("filename", event.Filename)
	}
	if event.Detail != nil {
		evt = evt.Interface("detail", event.Detail)
	}
	evt.Msg("audit event")
}

// LogReceived records a conversion request arriving.
func (a *AuditLogger) LogReceived(ctx context.Context, id uuid.UUID, filename string, sizeBytes int) {
	a.LogEvent(ctx, AuditEvent{
		ConversionID: id,
		Action:       ActionReceived,
		Filename:     filename,
		Detail:       map[string]interface{}{"size_bytes": sizeBytes},
	})
}

// LogTransition records a pipeline state change.
func (a *AuditLogger) LogTransition(ctx context.Context, id uuid.UUID, from, to domain.State) {
	a.LogEvent(ctx, AuditEvent{
		ConversionID: id,
		Action:       ActionStateChanged,
		Detail: map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		},
	})
}

// LogCacheHit records a conversion served without running the pipeline.
func (a *AuditLogger) LogCacheHit(ctx context.Context, id uuid.UUID, filename string) {
	a.LogEvent(ctx, AuditEvent{
		ConversionID: id,
		Action:       ActionCacheHit,
		Filename:     filename,
	})
}

// LogSucceeded records a finished conversion.
func (a *AuditLogger) LogSucceeded(ctx context.Context, id uuid.UUID, filename string, triangles int, stlBytes int64) {
	a.LogEvent(ctx, AuditEvent{
		ConversionID: id,
		Action:       ActionSucceeded,
		Filename:     filename,
		Detail: map[string]interface{}{
			"triangles": triangles,
			"stl_bytes": stlBytes,
		},
	})
}

// LogFailed records a failed conversion with its error kind.
func (a *AuditLogger) LogFailed(ctx context.Context, id uuid.UUID, filename string, err error) {
	detail := map[string]interface{}{"error": err.Error()}
	if kind, ok := domain.CauseKind(err); ok {
		detail["error_kind"] = string(kind)
	}
	a.LogEvent(ctx, AuditEvent{
		ConversionID: id,
		Action:       ActionFailed,
		Filename:     filename,
		Detail:       detail,
	})
}
