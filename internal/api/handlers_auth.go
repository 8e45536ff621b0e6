package api

import (
	"errors"
	"net/http"

	"github.com/glanburn/music-manager/internal/auth"
	"github.com/glanburn/music-manager/internal/model"
)

// requireUser pulls the authenticated user from the request context,
// writing 401 when the request is anonymous.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return u, true
}

// requireAdmin is requireUser plus the admin role check.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return nil, false
	}
	if !u.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin role required")
		return nil, false
	}
	return u, true
}

// ---------------------------------------------------------------------------
// POST /api/auth/register
// ---------------------------------------------------------------------------

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}

	// Self-registration always yields a competitor; admins grant the admin
	// role afterwards via the role endpoint.
	u, err := s.auth.Register(r.Context(), req.Email, req.DisplayName, req.Password, model.RoleCompetitor)
	if errors.Is(err, auth.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// ---------------------------------------------------------------------------
// POST /api/auth/login
// ---------------------------------------------------------------------------

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tok, u, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": tok,
		"user":  u,
	})
}

// ---------------------------------------------------------------------------
// POST /api/auth/logout
// ---------------------------------------------------------------------------

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok := bearerToken(r); tok != "" {
		s.auth.Logout(tok)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// GET /api/auth/me
// ---------------------------------------------------------------------------

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ---------------------------------------------------------------------------
// GET /api/users, GET /api/users/{id}, PATCH /api/users/{id}/role
// ---------------------------------------------------------------------------

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, err, "users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if !caller.IsAdmin() && caller.ID != id {
		writeError(w, http.StatusForbidden, "cannot view other users")
		return
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateUserRequest struct {
	DisplayName string `json:"display_name"`
}

// handleUpdateUser changes a user's display name. Users may rename
// themselves; admins may rename anyone. Artifacts uploaded before the
// rename keep the filename composed from the old name.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if !caller.IsAdmin() && caller.ID != id {
		writeError(w, http.StatusForbidden, "cannot rename other users")
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}
	if err := s.store.UpdateUserDisplayName(r.Context(), id, req.DisplayName); err != nil {
		writeStoreError(w, err, "user")
		return
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type roleRequest struct {
	Role string `json:"role"` // "admin" or "competitor"
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	id := r.PathValue("id")

	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleCompetitor {
		writeError(w, http.StatusBadRequest, "role must be admin or competitor")
		return
	}
	if err := s.store.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		writeStoreError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "role": req.Role})
}
