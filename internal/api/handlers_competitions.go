package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/glanburn/music-manager/internal/model"
)

// ---------------------------------------------------------------------------
// GET /api/competitions
// ---------------------------------------------------------------------------

func (s *Server) handleListCompetitions(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	comps, err := s.store.ListCompetitions(r.Context(), activeOnly)
	if err != nil {
		writeStoreError(w, err, "competitions")
		return
	}
	if comps == nil {
		comps = []model.Competition{}
	}
	writeJSON(w, http.StatusOK, comps)
}

// ---------------------------------------------------------------------------
// POST /api/competitions
// ---------------------------------------------------------------------------

type competitionRequest struct {
	Name     string `json:"name"`
	Year     int    `json:"year"`
	Location string `json:"location"`
	Active   *bool  `json:"active,omitempty"`
}

func (s *Server) handleCreateCompetition(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var req competitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Year == 0 {
		writeError(w, http.StatusBadRequest, "name and year are required")
		return
	}

	comp := model.NewCompetition(uuid.New().String(), req.Name, req.Year, req.Location)
	if err := s.store.CreateCompetition(r.Context(), comp); err != nil {
		writeStoreError(w, err, "competition")
		return
	}
	writeJSON(w, http.StatusCreated, comp)
}

// ---------------------------------------------------------------------------
// GET /api/competitions/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetCompetition(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	comp, err := s.store.GetCompetition(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "competition")
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// ---------------------------------------------------------------------------
// PUT /api/competitions/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleUpdateCompetition(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	id := r.PathValue("id")

	comp, err := s.store.GetCompetition(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "competition")
		return
	}

	var req competitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name != "" {
		comp.Name = req.Name
	}
	if req.Year != 0 {
		comp.Year = req.Year
	}
	if req.Location != "" {
		comp.Location = req.Location
	}
	if req.Active != nil {
		comp.Active = *req.Active
	}

	if err := s.store.UpdateCompetition(r.Context(), *comp); err != nil {
		writeStoreError(w, err, "competition")
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// ---------------------------------------------------------------------------
// DELETE /api/competitions/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteCompetition(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	if err := s.store.DeleteCompetition(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err, "competition")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
