package web

// errors.go turns grid errors into HTTP responses.
//
// Every error is logged with its technical detail and request id, then
// mapped with grid.MapError to the message and support code the operator
// sees. API routes answer JSON; the HTML page renders an alert.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/logging"
	"github.com/JonMunkholm/gridconsole/internal/store"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
}

// requestError is a malformed or invalid request body.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "invalid request: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{err: err} }

// statusFor maps a grid error to its HTTP status.
func statusFor(err error) int {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest
	}
	var refresh *grid.RefreshError
	if errors.As(err, &refresh) {
		return http.StatusBadGateway
	}
	if errors.Is(err, store.ErrSessionExpired) {
		return http.StatusUnauthorized
	}

	switch grid.KindOf(err) {
	case grid.KindUnregisteredTable, grid.KindNotFound:
		return http.StatusNotFound
	case grid.KindProtectedColumn, grid.KindNotWritable:
		return http.StatusForbidden
	case grid.KindBusy, grid.KindInvalidState:
		return http.StatusConflict
	case grid.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case grid.KindConfirmation:
		if errors.Is(err, grid.ErrConfirmationExpired) {
			return http.StatusGone
		}
		return http.StatusPreconditionRequired
	case grid.KindRemoteRejection:
		var se *store.Error
		if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 {
			return se.Status
		}
		return http.StatusBadGateway
	case grid.KindTransportFailure:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// userMessage is grid.MapError plus request validation messages.
func userMessage(err error) grid.UserMessage {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return grid.UserMessage{
			Message: "Invalid request",
			Action:  reqErr.err.Error(),
			Code:    "REQ001",
		}
	}
	return grid.MapError(err)
}

// respondError logs err and writes the mapped response. An expired platform
// session also ends the browser's grid session.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := userMessage(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request refused", attrs...)
	}

	if status == http.StatusUnauthorized {
		s.endSession(w, r)
	}

	if !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		errorAlert(msg).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	if k := grid.KindOf(err); k != grid.KindUnknown {
		resp.Kind = k.String()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
