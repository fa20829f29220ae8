package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/store"
)

type rowRequest struct {
	Table  string            `json:"table" validate:"required"`
	Fields map[string]string `json:"fields"`
}

type deleteRequest struct {
	Table string `json:"table" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,uuid"`
}

type rowResponse struct {
	Row   store.Row  `json:"row"`
	State grid.State `json:"state"`
}

// handleCreateRow submits a create form.
func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	s.saveRow(w, r, "")
}

// handleUpdateRow submits an edit form for one row.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	identity := pathParam(r, "identity")
	if identity == "" {
		s.respondError(w, r, grid.ErrRowNotFound)
		return
	}
	s.saveRow(w, r, identity)
}

func (s *Server) saveRow(w http.ResponseWriter, r *http.Request, identity string) {
	var req rowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctrl := sessionFrom(r).ctrl
	row, err := ctrl.CreateOrUpdateRow(r.Context(), req.Table, identity, req.Fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if identity == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, rowResponse{Row: row, State: ctrl.Snapshot()})
}

// handleRequestDelete opens the delete gate and returns the confirmation
// the client must echo back.
func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	conf, err := sessionFrom(r).ctrl.RequestDelete(req.Table, pathParam(r, "identity"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, conf)
}

// handleConfirmDelete issues the delete a confirmation token approves.
func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	token, ok := s.decodeToken(w, r)
	if !ok {
		return
	}

	ctrl := sessionFrom(r).ctrl
	if err := ctrl.ConfirmDelete(r.Context(), token); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// handleCancelDelete closes the delete gate.
func (s *Server) handleCancelDelete(w http.ResponseWriter, r *http.Request) {
	token, ok := s.decodeToken(w, r)
	if !ok {
		return
	}

	ctrl := sessionFrom(r).ctrl
	if err := ctrl.CancelDelete(token); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) decodeToken(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return uuid.Nil, false
	}
	token, err := uuid.Parse(req.Token)
	if err != nil {
		s.respondError(w, r, badRequest(err))
		return uuid.Nil, false
	}
	return token, true
}
