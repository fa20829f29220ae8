package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/logging"
)

// heartbeatInterval keeps proxies from closing an idle event stream.
var heartbeatInterval = 15 * time.Second

// handleEvents streams the session's grid state as server-sent events.
// A snapshot is sent on connect and after every state change. Bursts of
// changes are coalesced; the client always ends on the latest state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctrl := sessionFrom(r).ctrl
	changed := make(chan struct{}, 1)
	unsubscribe := ctrl.Subscribe(func(grid.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	var eventID int
	send := func() bool {
		data, err := json.Marshal(ctrl.Snapshot())
		if err != nil {
			logging.FromContext(r.Context()).Error("state encode failed", "error", err)
			return false
		}
		eventID++
		if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", eventID, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			if !send() {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
