package grid

import (
	"context"
	"log/slog"
	"time"
)

// AuditAction is the kind of confirmed mutation being recorded.
type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

// AuditSeverity ranks audit entries for review.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// SeverityOf returns the severity recorded for action.
func SeverityOf(action AuditAction) AuditSeverity {
	switch action {
	case ActionDelete:
		return SeverityHigh
	case ActionCreate:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditEntry describes one mutation the store accepted.
type AuditEntry struct {
	Action    AuditAction    `json:"action"`
	Severity  AuditSeverity  `json:"severity"`
	Table     string         `json:"table"`
	RecordID  string         `json:"recordId,omitempty"`
	Column    string         `json:"column,omitempty"`
	OldValue  any            `json:"oldValue,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditRecorder persists audit entries. Failures are logged by the caller
// and never undo the mutation.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, entry AuditEntry) error
}

// LogRecorder writes audit entries to a structured logger.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r LogRecorder) RecordAudit(ctx context.Context, e AuditEntry) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"action", e.Action,
		"severity", e.Severity,
		"table", e.Table,
		"record_id", e.RecordID,
		"column", e.Column,
		"fields", len(e.Payload),
		"actor", e.Actor,
	)
	return nil
}

type actorKey struct{}

// WithActor attaches the operator identity recorded in audit entries.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the operator identity, or "".
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}
