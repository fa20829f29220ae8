package web

import (
	"net/http"
)

type selectTableRequest struct {
	Table string `json:"table" validate:"required,max=128"`
}

type startEditRequest struct {
	Identity string `json:"identity" validate:"required"`
	Column   string `json:"column" validate:"required"`
}

type confirmEditRequest struct {
	// Pointer so an empty string is a valid value.
	Value *string `json:"value" validate:"required"`
}

type commitCellRequest struct {
	Table    string  `json:"table" validate:"required"`
	Identity string  `json:"identity" validate:"required"`
	Column   string  `json:"column" validate:"required"`
	Value    *string `json:"value" validate:"required"`
}

type tableInfo struct {
	Name     string   `json:"name"`
	Display  []string `json:"display"`
	Writable []string `json:"writable"`
	Identity []string `json:"identity"`
}

// handleListTables returns every registered table with its column sets.
// Protected columns are not listed.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	names := s.deps.Registry.Names()
	tables := make([]tableInfo, 0, len(names))
	for _, name := range names {
		schema, _ := s.deps.Registry.Lookup(name)
		tables = append(tables, tableInfo{
			Name:     name,
			Display:  schema.Display,
			Writable: schema.EffectiveWritable(),
			Identity: schema.Identity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// handleState returns the session's grid state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).ctrl.Snapshot())
}

// handleSelectTable switches the session to a table and loads its rows.
func (s *Server) handleSelectTable(w http.ResponseWriter, r *http.Request) {
	var req selectTableRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctrl := sessionFrom(r).ctrl
	if err := ctrl.SwitchTable(r.Context(), req.Table); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// handleRefresh reloads the current table.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFrom(r).ctrl
	if err := ctrl.Refresh(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// handleStartEdit opens an inline edit on one cell.
func (s *Server) handleStartEdit(w http.ResponseWriter, r *http.Request) {
	var req startEditRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctrl := sessionFrom(r).ctrl
	if err := ctrl.StartEdit(req.Identity, req.Column, nil); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Edit())
}

// handleConfirmEdit commits the open edit with the submitted text.
func (s *Server) handleConfirmEdit(w http.ResponseWriter, r *http.Request) {
	var req confirmEditRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctrl := sessionFrom(r).ctrl
	if err := ctrl.ConfirmEdit(r.Context(), *req.Value); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// handleCancelEdit discards the open edit.
func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFrom(r).ctrl
	if err := ctrl.CancelEdit(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// handleCommitCell writes one cell without going through an edit session.
func (s *Server) handleCommitCell(w http.ResponseWriter, r *http.Request) {
	var req commitCellRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctrl := sessionFrom(r).ctrl
	if err := ctrl.CommitCell(r.Context(), req.Table, req.Identity, req.Column, *req.Value); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}
