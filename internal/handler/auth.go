package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/server/middleware"
	"github.com/storydesk/storydesk/internal/service"
)

// AuthHandler serves login, identity and password endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// LoginRequest is the expected payload for the Login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the response payload for a successful login.
type LoginResponse struct {
	Success   bool         `json:"success"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	ExpiresIn int          `json:"expires_in"`
	Admin     *model.Admin `json:"admin"`
}

// ChangePasswordRequest is the payload for UpdatePassword.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Login authenticates an admin and returns a bearer token.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !readJSON(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresAt: res.ExpiresAt,
		ExpiresIn: int(h.auth.Tokens().TTL().Seconds()),
		Admin:     res.Admin,
	})
}

// Me returns the admin behind the bearer token.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	admin, err := h.auth.Me(r.Context(), ident.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, admin)
}

// UpdatePassword changes the caller's password.
// PUT /api/v1/auth/update-password
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req ChangePasswordRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.auth.ChangePassword(r.Context(), ident.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated")
}

// Logout is a no-op on the server: tokens are stateless and remain valid
// until they expire. Clients should discard their token.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "Logged out")
}

// Setup creates the first super_admin account. It is only available while
// no admin exists.
// POST /api/v1/auth/setup
func (h *AuthHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !readJSON(w, r, &req) {
		return
	}
	admin, err := h.auth.Setup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, admin)
}
