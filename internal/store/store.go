// Package store defines the request/response boundary between the data grid
// and the backend that owns the table data.
//
// The grid never talks to a database or HTTP endpoint directly. It depends
// on the Client interface below; concrete transports live in the rest,
// postgres and memory subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Row is one record keyed by column name.
// Values are limited to string, float64, bool and nil.
type Row map[string]any

// Clone returns a shallow copy of the row. Values are immutable scalars so
// a shallow copy is a full copy.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Client is the abstract remote store consumed by the grid.
//
// Every method must return a non-nil error for a non-success result; a
// failed status is never swallowed. Timeouts are the transport's concern:
// implementations are expected to resolve each call eventually.
type Client interface {
	List(ctx context.Context, table string) ([]Row, error)
	Create(ctx context.Context, table string, fields Row) (Row, error)
	Update(ctx context.Context, table, identity string, fields Row) (Row, error)
	Delete(ctx context.Context, table, identity string) error
}

// ErrorKind separates server rejections from connectivity failures.
type ErrorKind int

const (
	// KindRejected means the store answered with a non-success result.
	KindRejected ErrorKind = iota + 1
	// KindTransport means the store could not be reached or the answer
	// could not be read.
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// DefaultDetail is used when the store gives no human-readable detail.
const DefaultDetail = "Platform request failed"

// ErrSessionExpired is returned after a 401-equivalent response. The
// authentication collaborator has already been told to end the session by
// the time a caller sees it.
var ErrSessionExpired = errors.New("session expired")

// Error is the structured failure returned by every Client implementation.
type Error struct {
	Kind   ErrorKind
	Op     string // list, create, update, delete
	Table  string
	Status int    // HTTP-like status, 0 when unknown
	Detail string // human-readable detail from the store, may be empty
	Err    error  // underlying cause
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = DefaultDetail
	}
	if e.Status != 0 {
		return fmt.Sprintf("store %s %s: %d %s", e.Op, e.Table, e.Status, msg)
	}
	return fmt.Sprintf("store %s %s: %s", e.Op, e.Table, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserDetail returns the detail string suitable for display.
func (e *Error) UserDetail() string {
	if e.Detail != "" {
		return e.Detail
	}
	return DefaultDetail
}

// Rejected builds a KindRejected error.
func Rejected(op, table string, status int, detail string) *Error {
	return &Error{Kind: KindRejected, Op: op, Table: table, Status: status, Detail: detail}
}

// Transport builds a KindTransport error wrapping cause.
func Transport(op, table string, cause error) *Error {
	return &Error{Kind: KindTransport, Op: op, Table: table, Err: cause}
}

// IsRejected reports whether err carries a store rejection.
func IsRejected(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindRejected
}

// IsTransport reports whether err carries a transport failure.
func IsTransport(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindTransport
}
