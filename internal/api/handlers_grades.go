package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/glanburn/music-manager/internal/model"
)

// ---------------------------------------------------------------------------
// GET /api/grades?competition_id=...
// ---------------------------------------------------------------------------

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	f := model.GradeFilter{CompetitionID: r.URL.Query().Get("competition_id")}
	grades, err := s.store.ListGrades(r.Context(), f)
	if err != nil {
		writeStoreError(w, err, "grades")
		return
	}
	if grades == nil {
		grades = []model.Grade{}
	}
	writeJSON(w, http.StatusOK, grades)
}

// ---------------------------------------------------------------------------
// POST /api/grades
// ---------------------------------------------------------------------------

type gradeRequest struct {
	CompetitionID      string `json:"competition_id"`
	Category           string `json:"category"`
	Segment            string `json:"segment"`
	Type               string `json:"type"`
	MaxDurationSeconds int    `json:"max_duration_seconds"`
}

func (s *Server) handleCreateGrade(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var req gradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CompetitionID == "" || req.Category == "" || req.Segment == "" {
		writeError(w, http.StatusBadRequest, "competition_id, category and segment are required")
		return
	}
	if req.Type == "" {
		req.Type = model.GradeTypeSolo
	}

	// The competition must exist; grades are not snapshots.
	if _, err := s.store.GetCompetition(r.Context(), req.CompetitionID); err != nil {
		writeStoreError(w, err, "competition")
		return
	}

	grade := model.NewGrade(uuid.New().String(), req.CompetitionID, req.Category, req.Segment, req.Type, req.MaxDurationSeconds)
	if err := s.store.CreateGrade(r.Context(), grade); err != nil {
		writeStoreError(w, err, "grade")
		return
	}
	writeJSON(w, http.StatusCreated, grade)
}

// ---------------------------------------------------------------------------
// GET /api/grades/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetGrade(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	grade, err := s.store.GetGrade(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "grade")
		return
	}
	writeJSON(w, http.StatusOK, grade)
}

// ---------------------------------------------------------------------------
// PUT /api/grades/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleUpdateGrade(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	id := r.PathValue("id")

	grade, err := s.store.GetGrade(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "grade")
		return
	}

	var req gradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Category != "" {
		grade.Category = req.Category
	}
	if req.Segment != "" {
		grade.Segment = req.Segment
	}
	if req.Type != "" {
		grade.Type = req.Type
	}
	if req.MaxDurationSeconds != 0 {
		grade.MaxDurationSeconds = req.MaxDurationSeconds
	}

	if err := s.store.UpdateGrade(r.Context(), *grade); err != nil {
		writeStoreError(w, err, "grade")
		return
	}
	writeJSON(w, http.StatusOK, grade)
}

// ---------------------------------------------------------------------------
// DELETE /api/grades/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	if err := s.store.DeleteGrade(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err, "grade")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
