package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/logging"
)

// pinger is implemented by stores that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth reports liveness and, when the store supports it, whether
// the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"tables":   s.deps.Registry.Len(),
		"sessions": s.sessions.len(),
	}
	if p, ok := s.deps.Client.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["store"] = grid.MapError(err).Message
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePage renders the grid page. ?table= switches the session's table
// first; a refused switch renders the page with the error alert.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFrom(r).ctrl
	view := pageView{Tables: s.deps.Registry.Names()}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if table := r.URL.Query().Get("table"); table != "" && table != ctrl.Snapshot().Table {
		if err := ctrl.SwitchTable(r.Context(), table); err != nil {
			msg := userMessage(err)
			view.Alert = &msg
			w.WriteHeader(statusFor(err))
		}
	}
	view.State = ctrl.Snapshot()

	if err := gridPage(view).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("page render failed", "error", err)
	}
}
