package handler

import (
	"log/slog"
	"net/http"

	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/server/middleware"
	"github.com/storydesk/storydesk/internal/service"
	"github.com/storydesk/storydesk/internal/validate"
)

// AdminHandler manages admin accounts. Every route is super_admin only.
type AdminHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auth *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{auth: auth, logger: logger}
}

// AdminStatusRequest is the payload for SetStatus.
type AdminStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// AdminRoleRequest is the payload for SetRole.
type AdminRoleRequest struct {
	Role model.Role `json:"role"`
}

// List returns every admin account.
// GET /api/v1/admins
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := h.auth.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	n := len(admins)
	writeList(w, admins, n, int64(n), model.Page{Page: 1, Limit: n})
}

// Create registers a new admin.
// POST /api/v1/admins
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !readJSON(w, r, &req) {
		return
	}
	admin, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, admin)
}

// SetStatus activates or deactivates an admin.
// PATCH /api/v1/admins/{id}/status
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AdminStatusRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeServiceError(w, r, h.logger, validate.Fieldf("is_active", "is required"))
		return
	}
	actor := middleware.GetIdentity(r.Context())
	admin, err := h.auth.SetActive(r.Context(), actor.ID, id, *req.IsActive)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, admin)
}

// SetRole changes an admin's role.
// PATCH /api/v1/admins/{id}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AdminRoleRequest
	if !readJSON(w, r, &req) {
		return
	}
	actor := middleware.GetIdentity(r.Context())
	admin, err := h.auth.SetRole(r.Context(), actor.ID, id, req.Role)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, admin)
}
