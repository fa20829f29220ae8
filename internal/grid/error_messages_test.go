package grid

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:        "unregistered table",
			err:         &UnregisteredTableError{Table: "secrets"},
			wantCode:    "GRID001",
			wantMessage: "Endpoint not registered in safety allow-list.",
		},
		{
			name:     "protected column",
			err:      &ProtectedColumnViolation{Table: "users", Column: "user_id"},
			wantCode: "GRID002",
		},
		{
			name:     "not writable",
			err:      &ColumnNotWritableError{Table: "users", Column: "email"},
			wantCode: "GRID003",
		},
		{
			name:     "busy",
			err:      ErrBusy,
			wantCode: "GRID004",
		},
		{
			name:     "wrapped edit conflict",
			err:      fmt.Errorf("start: %w", ErrEditInProgress),
			wantCode: "GRID005",
		},
		{
			name:     "empty payload",
			err:      ErrEmptyPayload,
			wantCode: "GRID007",
		},
		{
			name:     "confirmation expired",
			err:      ErrConfirmationExpired,
			wantCode: "GRID009",
		},
		{
			name:     "refresh failure",
			err:      &RefreshError{Table: "users", Err: errors.New("boom")},
			wantCode: "GRID010",
		},
		{
			name:        "remote rejection detail verbatim",
			err:         store.Rejected("update", "users", 400, "Field 'foo' is not allowed"),
			wantCode:    "REM001",
			wantMessage: "Field 'foo' is not allowed",
		},
		{
			name:        "remote rejection without detail",
			err:         store.Rejected("update", "users", 500, ""),
			wantCode:    "REM001",
			wantMessage: "Platform request failed",
		},
		{
			name:     "session expired",
			err:      store.ErrSessionExpired,
			wantCode: "REM002",
		},
		{
			name:        "transport connection refused",
			err:         store.Transport("list", "users", errors.New("dial tcp: connection refused")),
			wantCode:    "NET001",
			wantMessage: "Unable to reach the data platform",
		},
		{
			name:     "transport generic",
			err:      store.Transport("list", "users", errors.New("EOF")),
			wantCode: "NET000",
		},
		{
			name:     "bare context cancellation",
			err:      context.Canceled,
			wantCode: "NET004",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrBusy)
	expected := "Another action is still in progress (Code: GRID004). Wait for it to finish and try again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil error is not user facing")
	}
	if !IsUserFacing(ErrRowNotFound) {
		t.Error("known error should be user facing")
	}
	if IsUserFacing(errors.New("random internal error xyz")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	techErr := store.Rejected("create", "users", 422, "email already taken")
	userErr := NewUserError(techErr)
	if userErr.Error() != "email already taken" {
		t.Errorf("Error() = %q, want store detail", userErr.Error())
	}
	if !errors.Is(userErr, techErr) {
		t.Error("Unwrap() should return original error")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{fmt.Errorf("wrap: %w", &UnregisteredTableError{Table: "x"}), KindUnregisteredTable},
		{ErrCommitInFlight, KindInvalidState},
		{ErrConfirmationRequired, KindConfirmation},
		{store.Rejected("list", "t", 403, "no"), KindRemoteRejection},
		{store.Transport("list", "t", errors.New("x")), KindTransportFailure},
		{&RefreshError{Table: "t", Err: store.Transport("list", "t", errors.New("x"))}, KindTransportFailure},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
