package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glanburn/music-manager/internal/blob"
	"github.com/glanburn/music-manager/internal/model"
	"github.com/glanburn/music-manager/internal/naming"
)

// ---------------------------------------------------------------------------
// POST /api/artifacts (multipart upload)
// ---------------------------------------------------------------------------

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body or file too large")
		return
	}

	gradeID := r.FormValue("grade_id")
	if gradeID == "" {
		writeError(w, http.StatusBadRequest, "grade_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("extension %q not allowed", ext))
		return
	}

	grade, err := s.store.GetGrade(r.Context(), gradeID)
	if err != nil {
		writeStoreError(w, err, "grade")
		return
	}
	comp, err := s.store.GetCompetition(r.Context(), grade.CompetitionID)
	if err != nil {
		writeStoreError(w, err, "competition")
		return
	}
	if !comp.Active {
		writeError(w, http.StatusConflict, "competition is closed for uploads")
		return
	}

	// One upload per grade per competitor: a re-upload replaces the
	// previous artifact and its blob.
	previous, err := s.store.FindArtifactByGradeOwner(r.Context(), gradeID, owner.ID)
	if err != nil {
		writeStoreError(w, err, "artifact")
		return
	}

	storageID := uuid.New().String()
	size, checksum, err := s.blobs.Put(storageID, file)
	if err != nil {
		s.log.Error("blob write failed", "storage_id", storageID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	// DisplayName is extension-less; the extension lives in OriginalName
	// and is re-attached when the file is served.
	displayName := naming.BaseName(comp.Year, comp.Name, grade.Category, grade.Segment, owner.DisplayName)
	art := model.NewArtifact(uuid.New().String(), storageID, displayName, header.Filename, *comp, *grade, *owner, size, checksum)

	if previous != nil {
		if err := s.store.DeleteArtifact(r.Context(), previous.ID); err != nil {
			s.blobs.Delete(storageID)
			writeStoreError(w, err, "artifact")
			return
		}
		if err := s.blobs.Delete(previous.StorageID); err != nil {
			s.log.Warn("failed to delete replaced blob", "storage_id", previous.StorageID, "error", err)
		}
	}

	if err := s.store.CreateArtifact(r.Context(), art); err != nil {
		s.blobs.Delete(storageID)
		writeStoreError(w, err, "artifact")
		return
	}
	writeJSON(w, http.StatusCreated, art)
}

// ---------------------------------------------------------------------------
// GET /api/artifacts
// ---------------------------------------------------------------------------

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := model.ArtifactFilter{
		CompetitionID: q.Get("competition_id"),
		GradeID:       q.Get("grade_id"),
		OwnerID:       q.Get("owner_id"),
		Status:        q.Get("status"),
		Limit:         queryInt(r, "limit", 0),
		Offset:        queryInt(r, "offset", 0),
	}
	// Competitors see only their own uploads.
	if !caller.IsAdmin() {
		f.OwnerID = caller.ID
	}

	artifacts, err := s.store.ListArtifacts(r.Context(), f)
	if err != nil {
		writeStoreError(w, err, "artifacts")
		return
	}
	if artifacts == nil {
		artifacts = []model.Artifact{}
	}
	writeJSON(w, http.StatusOK, artifacts)
}

// ---------------------------------------------------------------------------
// GET /api/artifacts/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	art, err := s.store.GetArtifact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "artifact")
		return
	}
	if !caller.IsAdmin() && art.OwnerID != caller.ID {
		writeError(w, http.StatusForbidden, "cannot view other competitors' uploads")
		return
	}
	writeJSON(w, http.StatusOK, art)
}

// ---------------------------------------------------------------------------
// DELETE /api/artifacts/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	art, err := s.store.GetArtifact(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "artifact")
		return
	}
	if !caller.IsAdmin() && art.OwnerID != caller.ID {
		writeError(w, http.StatusForbidden, "cannot delete other competitors' uploads")
		return
	}

	if err := s.store.DeleteArtifact(r.Context(), id); err != nil {
		writeStoreError(w, err, "artifact")
		return
	}
	if err := s.blobs.Delete(art.StorageID); err != nil {
		s.log.Warn("failed to delete blob", "storage_id", art.StorageID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// POST /api/artifacts/{id}/link — the artifact locator
// ---------------------------------------------------------------------------

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	art, err := s.store.GetArtifact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "artifact")
		return
	}
	if !caller.IsAdmin() && art.OwnerID != caller.ID {
		writeError(w, http.StatusForbidden, "cannot download other competitors' uploads")
		return
	}
	if art.Status == model.StatusCorrupt {
		writeError(w, http.StatusConflict, "artifact failed verification")
		return
	}

	tok, expires := s.tokens.Issue(art.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"url":        "/files/" + tok,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

// ---------------------------------------------------------------------------
// GET /files/{token}
// ---------------------------------------------------------------------------

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	artifactID, ok := s.tokens.Lookup(r.PathValue("token"))
	if !ok {
		writeError(w, http.StatusNotFound, "link expired or unknown")
		return
	}
	art, err := s.store.GetArtifact(r.Context(), artifactID)
	if err != nil {
		writeStoreError(w, err, "artifact")
		return
	}
	data, err := s.blobs.Get(art.StorageID)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file content missing")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	contentType := mime.TypeByExtension("." + art.Extension())
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+art.FileName()+`"`)
	w.Write(data)
}
