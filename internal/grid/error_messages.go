package grid

// # Error Codes Reference
//
// Every error a grid operation returns maps to a user-facing message with a
// code support staff can look up.
//
// # Grid Rules (GRID001-GRID099)
//
//	GRID001 - Unregistered table: the table is not in the allow-list
//	GRID002 - Protected column: the column can never be written from the grid
//	GRID003 - Column not writable: the column is read-only in the grid
//	GRID004 - Busy: another row action is still running
//	GRID005 - Edit conflict: another cell is being edited or saved
//	GRID006 - Row not found: the row is no longer in the loaded table
//	GRID007 - Nothing to save: every submitted field was filtered out
//	GRID008 - Confirmation required: the delete was not confirmed
//	GRID009 - Confirmation expired: the delete confirmation is stale
//	GRID010 - Refresh failed: the write succeeded but the reload did not
//
// # Remote Errors (REM001-REM099)
//
//	REM001 - Rejected: the store refused the request; its detail is shown
//	REM002 - Session expired: the operator must sign in again
//
// # Network Errors (NET001-NET099)
//
// Matched on the technical error text, case-insensitively, first match wins:
//
//	NET001 - Connection refused       Patterns: "connection refused"
//	NET002 - Connection reset         Patterns: "connection reset"
//	NET003 - Timeout                  Patterns: "timeout", "deadline exceeded"
//	NET004 - Request cancelled        Patterns: "context canceled"
//	NET005 - Host unreachable         Patterns: "no such host", "unreachable"
//
// # Default Error (ERR000)
//
// Fallback when nothing else matches. Check the application log for the
// technical error.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgUnregistered = UserMessage{
		Message: "Endpoint not registered in safety allow-list.",
		Action:  "Choose one of the registered tables",
		Code:    "GRID001",
	}
	msgProtected = UserMessage{
		Message: "This field is protected and cannot be edited",
		Action:  "Protected fields are managed by the platform",
		Code:    "GRID002",
	}
	msgNotWritable = UserMessage{
		Message: "This field is read-only",
		Action:  "Only editable columns can be changed",
		Code:    "GRID003",
	}
	msgBusy = UserMessage{
		Message: "Another action is still in progress",
		Action:  "Wait for it to finish and try again",
		Code:    "GRID004",
	}
	msgEditConflict = UserMessage{
		Message: "Another cell is being edited or saved",
		Action:  "Finish or cancel the current edit first",
		Code:    "GRID005",
	}
	msgRowNotFound = UserMessage{
		Message: "The record is no longer loaded",
		Action:  "Refresh the table and try again",
		Code:    "GRID006",
	}
	msgEmptyPayload = UserMessage{
		Message: "There are no editable fields to save",
		Action:  "Fill in at least one editable field",
		Code:    "GRID007",
	}
	msgConfirmRequired = UserMessage{
		Message: "Deletion was not confirmed",
		Action:  "Confirm the deletion to continue",
		Code:    "GRID008",
	}
	msgConfirmExpired = UserMessage{
		Message: "The deletion confirmation has expired",
		Action:  "Start the deletion again",
		Code:    "GRID009",
	}
	msgRefreshFailed = UserMessage{
		Message: "Saved, but the table could not be reloaded",
		Action:  "Refresh the table",
		Code:    "GRID010",
	}
	msgSessionExpired = UserMessage{
		Message: "Your session has expired",
		Action:  "Sign in again",
		Code:    "REM002",
	}
)

// errorPattern maps a technical error substring to a user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// transportPatterns are checked in order; specific before general.
var transportPatterns = []errorPattern{
	{"connection refused", UserMessage{"Unable to reach the data platform", "Please try again in a few moments", "NET001"}},
	{"connection reset", UserMessage{"Connection to the data platform was interrupted", "Please try again", "NET002"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "NET004"}},
	{"deadline exceeded", UserMessage{"Request timed out", "Please try again later", "NET003"}},
	{"timeout", UserMessage{"Request timed out", "Please try again later", "NET003"}},
	{"no such host", UserMessage{"Data platform host could not be found", "Check the store configuration", "NET005"}},
	{"unreachable", UserMessage{"Data platform host could not be found", "Check the store configuration", "NET005"}},
}

var msgTransportDefault = UserMessage{
	Message: "Could not reach the data platform",
	Action:  "Check your connection and try again",
	Code:    "NET000",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error returned by a grid operation to a message
// for the operator. Remote rejections carry the store's detail verbatim.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var refresh *RefreshError
	if errors.As(err, &refresh) {
		return msgRefreshFailed
	}
	if errors.Is(err, store.ErrSessionExpired) {
		return msgSessionExpired
	}

	switch KindOf(err) {
	case KindUnregisteredTable:
		return msgUnregistered
	case KindProtectedColumn:
		return msgProtected
	case KindNotWritable:
		return msgNotWritable
	case KindBusy:
		return msgBusy
	case KindInvalidState:
		return msgEditConflict
	case KindNotFound:
		return msgRowNotFound
	case KindInvalidInput:
		return msgEmptyPayload
	case KindConfirmation:
		if errors.Is(err, ErrConfirmationExpired) {
			return msgConfirmExpired
		}
		return msgConfirmRequired
	case KindRemoteRejection:
		var se *store.Error
		detail := store.DefaultDetail
		if errors.As(err, &se) {
			detail = se.UserDetail()
		}
		return UserMessage{
			Message: detail,
			Action:  "Review the change and try again",
			Code:    "REM001",
		}
	case KindTransportFailure:
		return matchTransport(err)
	}

	// Context errors surface outside the store client too.
	if m := matchTransport(err); m.Code != msgTransportDefault.Code {
		return m
	}
	return defaultMessage
}

func matchTransport(err error) UserMessage {
	errStr := strings.ToLower(err.Error())
	for _, ep := range transportPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return msgTransportDefault
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
