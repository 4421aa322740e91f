package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/service"
)

type contextKeyAuth string

// IdentityKey is the context key for the authenticated identity.
const IdentityKey contextKeyAuth = "auth_identity"

// TokenVerifier verifies bearer tokens. *service.TokenIssuer satisfies it.
type TokenVerifier interface {
	Verify(token string) (*service.Identity, error)
}

// Authenticate returns an HTTP middleware that requires a valid
// "Authorization: Bearer <token>" header. On success the verified
// Identity is attached to the request context; otherwise a 401 JSON error
// is written.
func Authenticate(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Authentication required. Provide a Bearer token.")
				return
			}

			ident, err := tokens.Verify(token)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, service.ErrExpiredToken) {
					msg = "Token expired"
				}
				WriteError(w, http.StatusUnauthorized, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// RequireRole returns an HTTP middleware that only lets identities with
// one of roles through. It must be used after Authenticate.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := GetIdentity(r.Context())
			if ident == nil {
				WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !ident.Role.In(roles...) {
				WriteError(w, http.StatusForbidden, "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity extracts the authenticated identity from the context.
// Returns nil if no identity is present (i.e., unauthenticated request).
func GetIdentity(ctx context.Context) *service.Identity {
	if id, ok := ctx.Value(IdentityKey).(*service.Identity); ok {
		return id
	}
	return nil
}

// WithIdentity returns a copy of ctx carrying ident.
func WithIdentity(ctx context.Context, ident *service.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, ident)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WriteError writes the standard {"success":false,"message":...} envelope.
// The handler package has its own richer writer; this one exists so
// middleware does not import handler.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{Success: false, Message: message})
}
