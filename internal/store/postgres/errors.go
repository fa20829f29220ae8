package postgres

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

// sqlStateStatus maps SQLSTATE classes and codes to HTTP-like statuses.
// Exact codes are checked before their two-character class.
var sqlStateStatus = map[string]int{
	"23505": http.StatusConflict,   // unique_violation
	"23503": http.StatusConflict,   // foreign_key_violation
	"40001": http.StatusConflict,   // serialization_failure
	"40P01": http.StatusConflict,   // deadlock_detected
	"42501": http.StatusForbidden,  // insufficient_privilege
	"42P01": http.StatusNotFound,   // undefined_table
	"42703": http.StatusBadRequest, // undefined_column
	"22":    http.StatusBadRequest, // data exception
	"23":    http.StatusBadRequest, // integrity constraint violation
}

// mapError converts a pgx error into a *store.Error. Server-side errors are
// rejections; everything else is a transport failure.
func mapError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Rejected(op, table, http.StatusNotFound, notFoundDetail)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		status, ok := sqlStateStatus[pgErr.Code]
		if !ok && len(pgErr.Code) >= 2 {
			status, ok = sqlStateStatus[pgErr.Code[:2]]
		}
		if !ok {
			status = http.StatusBadRequest
		}
		se := store.Rejected(op, table, status, pgDetail(pgErr))
		se.Err = err
		return se
	}

	// Connection loss, timeouts and cancellation.
	return store.Transport(op, table, err)
}

func pgDetail(e *pgconn.PgError) string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return strings.TrimSpace(msg)
}
