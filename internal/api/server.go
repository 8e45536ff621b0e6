package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/glanburn/music-manager/internal/auth"
	"github.com/glanburn/music-manager/internal/blob"
	"github.com/glanburn/music-manager/internal/store"
	"github.com/glanburn/music-manager/internal/token"
)

// maxUploadBytes is the maximum allowed music file size (30 MB).
const maxUploadBytes int64 = 30 << 20

// maxJSONBody is the maximum allowed JSON request body size (1 MB).
const maxJSONBody int64 = 1 << 20

// allowedExtensions are the upload formats accepted for competition music.
var allowedExtensions = map[string]bool{
	"mp3": true,
	"m4a": true,
	"aac": true,
	"wav": true,
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	store      store.Repository
	blobs      *blob.Store
	tokens     *token.Issuer
	auth       *auth.Service
	log        *slog.Logger
	corsOrigin string
	mux        *http.ServeMux
}

// Options configures optional server behaviour.
type Options struct {
	// CORSOrigin is the allowed CORS origin; "*" when empty.
	CORSOrigin string
	Logger     *slog.Logger
}

// New creates a new API server.
func New(s store.Repository, blobs *blob.Store, tokens *token.Issuer, authSvc *auth.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	srv := &Server{
		store:      s,
		blobs:      blobs,
		tokens:     tokens,
		auth:       authSvc,
		log:        opts.Logger,
		corsOrigin: opts.CORSOrigin,
		mux:        http.NewServeMux(),
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.requestLog(s.cors(s.session(gzhttp.GzipHandler(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.HandleFunc("GET /api/competitions", s.handleListCompetitions)
	s.mux.HandleFunc("POST /api/competitions", s.handleCreateCompetition)
	s.mux.HandleFunc("GET /api/competitions/{id}", s.handleGetCompetition)
	s.mux.HandleFunc("PUT /api/competitions/{id}", s.handleUpdateCompetition)
	s.mux.HandleFunc("DELETE /api/competitions/{id}", s.handleDeleteCompetition)

	s.mux.HandleFunc("GET /api/grades", s.handleListGrades)
	s.mux.HandleFunc("POST /api/grades", s.handleCreateGrade)
	s.mux.HandleFunc("GET /api/grades/{id}", s.handleGetGrade)
	s.mux.HandleFunc("PUT /api/grades/{id}", s.handleUpdateGrade)
	s.mux.HandleFunc("DELETE /api/grades/{id}", s.handleDeleteGrade)

	s.mux.HandleFunc("GET /api/users", s.handleListUsers)
	s.mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	s.mux.HandleFunc("PATCH /api/users/{id}", s.handleUpdateUser)
	s.mux.HandleFunc("PATCH /api/users/{id}/role", s.handleUpdateUserRole)

	s.mux.HandleFunc("POST /api/artifacts", s.handleUpload)
	s.mux.HandleFunc("GET /api/artifacts", s.handleListArtifacts)
	s.mux.HandleFunc("GET /api/artifacts/{id}", s.handleGetArtifact)
	s.mux.HandleFunc("DELETE /api/artifacts/{id}", s.handleDeleteArtifact)
	s.mux.HandleFunc("POST /api/artifacts/{id}/link", s.handleLink)

	s.mux.HandleFunc("GET /files/{token}", s.handleFile)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// cors sets CORS headers and short-circuits preflight requests.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// session resolves the bearer token (if any) and attaches the user to the
// request context. Missing or invalid tokens leave the request anonymous;
// handlers decide whether identity is required.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := bearerToken(r); tok != "" {
			if u, err := s.auth.UserForToken(r.Context(), tok); err == nil {
				r = r.WithContext(auth.WithUser(r.Context(), u))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestLog logs each request with its duration and status.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).String())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return tok
	}
	return ""
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinel errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrInUse):
		writeError(w, http.StatusConflict, what+" is still in use: "+err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, what+" already exists")
	default:
		writeError(w, http.StatusInternalServerError, "failed to access "+what)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
