// Package user provides minimal user registration and lookup. Token-based
// authentication is handled upstream and is out of scope here; handlers
// identify callers by explicit user IDs.
package user

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/samuelcardenasg23/quantum-energy-back/internal/httpx"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/model"
	"github.com/samuelcardenasg23/quantum-energy-back/internal/store"
)

// Service handles user requests.
type Service struct {
	store store.Store
}

// NewService creates a new user service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// CreateRequest is the JSON body for POST /users.
type CreateRequest struct {
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Location string     `json:"location"`
	Role     model.Role `json:"role"`
}

func validRole(r model.Role) bool {
	switch r {
	case model.RoleProsumer, model.RoleConsumer, model.RoleGenerator:
		return true
	}
	return false
}

// HandleCreate handles POST /api/v1/users.
func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Email == "" || req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and name are required")
		return
	}
	if !validRole(req.Role) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "role must be prosumer, consumer, or generator")
		return
	}

	u := model.User{
		ID:        uuid.New().String(),
		Email:     req.Email,
		Name:      req.Name,
		Location:  req.Location,
		Role:      req.Role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), &u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			httpx.WriteError(w, http.StatusConflict, "email_taken", "email already registered")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

// HandleGet handles GET /api/v1/users/{userID}.
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

// HandleList handles GET /api/v1/users.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "server error")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}
