package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/gridconsole/internal/grid"
)

// AuditTable is the console's own audit log. It is never registered in the
// grid, so operators cannot edit it through the console.
const AuditTable = "grid_audit_log"

const createAuditTable = `CREATE TABLE IF NOT EXISTS grid_audit_log (
	id          UUID PRIMARY KEY,
	action      TEXT NOT NULL,
	severity    TEXT NOT NULL,
	table_name  TEXT NOT NULL,
	record_id   TEXT,
	column_name TEXT,
	old_value   JSONB,
	payload     JSONB,
	actor       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createAuditIndex = `CREATE INDEX IF NOT EXISTS grid_audit_log_created_at_idx
	ON grid_audit_log (created_at)`

// AuditLog writes grid.AuditEntry rows to PostgreSQL.
type AuditLog struct {
	pool *pgxpool.Pool
	qb   squirrel.StatementBuilderType
}

// NewAuditLog returns an AuditLog on pool. Call EnsureSchema once at start.
func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{
		pool: pool,
		qb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// EnsureSchema creates the audit table if it does not exist.
func (a *AuditLog) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createAuditTable, createAuditIndex} {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", AuditTable, err)
		}
	}
	return nil
}

func (a *AuditLog) insertQuery(id uuid.UUID, e grid.AuditEntry) (squirrel.InsertBuilder, error) {
	oldValue, err := jsonOrNil(e.OldValue)
	if err != nil {
		return squirrel.InsertBuilder{}, err
	}
	payload, err := jsonOrNil(e.Payload)
	if err != nil {
		return squirrel.InsertBuilder{}, err
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return a.qb.Insert(AuditTable).
		Columns("id", "action", "severity", "table_name", "record_id", "column_name",
			"old_value", "payload", "actor", "created_at").
		Values(id, string(e.Action), string(e.Severity), e.Table, nullString(e.RecordID),
			nullString(e.Column), oldValue, payload, nullString(e.Actor), createdAt), nil
}

// RecordAudit implements grid.AuditRecorder.
func (a *AuditLog) RecordAudit(ctx context.Context, e grid.AuditEntry) error {
	b, err := a.insertQuery(uuid.New(), e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	if _, err := a.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Purge deletes entries created before cutoff and returns how many.
func (a *AuditLog) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := a.qb.Delete(AuditTable).Where(squirrel.Lt{"created_at": cutoff}).ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := a.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func jsonOrNil(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ grid.AuditRecorder = (*AuditLog)(nil)
