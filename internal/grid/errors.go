package grid

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

// Kind discriminates every failure a Controller operation can return.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnregisteredTable
	KindProtectedColumn
	KindRemoteRejection
	KindTransportFailure
	KindBusy
	KindInvalidState
	KindNotWritable
	KindNotFound
	KindConfirmation
	KindInvalidInput
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindUnregisteredTable: "unregistered_table",
	KindProtectedColumn:   "protected_column",
	KindRemoteRejection:   "remote_rejection",
	KindTransportFailure:  "transport_failure",
	KindBusy:              "busy",
	KindInvalidState:      "invalid_state",
	KindNotWritable:       "not_writable",
	KindNotFound:          "not_found",
	KindConfirmation:      "confirmation",
	KindInvalidInput:      "invalid_input",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sentinel errors for local rule failures.
var (
	ErrBusy                 = errors.New("another row action is in progress")
	ErrEditInProgress       = errors.New("another cell edit is in progress")
	ErrNoActiveEdit         = errors.New("no cell edit is active")
	ErrCommitInFlight       = errors.New("cell commit already in flight")
	ErrRowNotFound          = errors.New("row not found in cache")
	ErrEmptyPayload         = errors.New("no writable fields submitted")
	ErrConfirmationRequired = errors.New("delete confirmation required")
	ErrConfirmationExpired  = errors.New("delete confirmation expired or unknown")
	ErrTableNotLoaded       = errors.New("table is not the current selection")
)

// UnregisteredTableError is returned for any table missing from the registry.
type UnregisteredTableError struct {
	Table string
}

func (e *UnregisteredTableError) Error() string {
	return fmt.Sprintf("table not registered: %q", e.Table)
}

// ProtectedColumnViolation is returned when a write targets a protected
// column. The store is never contacted when this is returned.
type ProtectedColumnViolation struct {
	Table  string
	Column string
}

func (e *ProtectedColumnViolation) Error() string {
	return fmt.Sprintf("protected column %s.%s cannot be written", e.Table, e.Column)
}

// ColumnNotWritableError is returned when a column is outside the effective
// writable set without being protected.
type ColumnNotWritableError struct {
	Table  string
	Column string
}

func (e *ColumnNotWritableError) Error() string {
	return fmt.Sprintf("column %s.%s is not writable", e.Table, e.Column)
}

// RefreshError reports a successful write followed by a failed reload.
// The write itself is not rolled back.
type RefreshError struct {
	Table string
	Err   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("reload %s after write: %v", e.Table, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unrecognised errors are KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var unreg *UnregisteredTableError
	var prot *ProtectedColumnViolation
	var notWritable *ColumnNotWritableError
	var se *store.Error

	switch {
	case errors.As(err, &unreg):
		return KindUnregisteredTable
	case errors.As(err, &prot):
		return KindProtectedColumn
	case errors.As(err, &notWritable):
		return KindNotWritable
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrEditInProgress), errors.Is(err, ErrNoActiveEdit),
		errors.Is(err, ErrCommitInFlight), errors.Is(err, ErrTableNotLoaded):
		return KindInvalidState
	case errors.Is(err, ErrRowNotFound):
		return KindNotFound
	case errors.Is(err, ErrConfirmationRequired), errors.Is(err, ErrConfirmationExpired):
		return KindConfirmation
	case errors.Is(err, ErrEmptyPayload):
		return KindInvalidInput
	case errors.Is(err, store.ErrSessionExpired):
		return KindRemoteRejection
	case errors.As(err, &se):
		if se.Kind == store.KindTransport {
			return KindTransportFailure
		}
		return KindRemoteRejection
	}
	return KindUnknown
}
