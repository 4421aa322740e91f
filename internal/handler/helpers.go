package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/query"
	"github.com/storydesk/storydesk/internal/service"
	"github.com/storydesk/storydesk/internal/validate"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeData writes a {"success": true, "data": v} envelope.
func writeData(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, model.DataResponse{Success: true, Data: v})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.DataResponse{Success: true, Message: message})
}

// writeList writes a paginated list envelope.
func writeList(w http.ResponseWriter, data interface{}, count int, total int64, page model.Page) {
	meta := &model.ResponseMeta{Count: count, Total: total, Page: page.Page, Limit: page.Limit}
	if page.Limit > 0 {
		meta.Pages = int((total + int64(page.Limit) - 1) / int64(page.Limit))
	}
	writeJSON(w, http.StatusOK, model.ListResponse{Success: true, Data: data, Meta: meta})
}

// writeError writes the standard error envelope. Field errors are included
// when given.
func writeError(w http.ResponseWriter, status int, message string, fields ...model.FieldError) {
	writeJSON(w, status, model.ErrorResponse{
		Success: false,
		Message: message,
		Errors:  fields,
	})
}

// writeServiceError maps an error from the service or store layer to a
// status code and a client-safe message. Unexpected errors are logged with
// detail and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if ve, ok := validate.As(err); ok {
		writeError(w, http.StatusBadRequest, "Validation failed", ve.Fields...)
		return
	}

	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "Email and password are required")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, "Account is disabled. Contact a super admin.")
	case errors.Is(err, service.ErrExpiredToken):
		writeError(w, http.StatusUnauthorized, "Token expired")
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, detail(err, service.ErrForbidden, "You do not have permission to perform this action"))
	case errors.Is(err, service.ErrNotFound), errors.Is(err, config.ErrNotFound):
		writeError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrSetupComplete):
		writeError(w, http.StatusConflict, "Initial setup has already been completed")
	case errors.Is(err, service.ErrConflict), errors.Is(err, config.ErrDuplicate):
		writeError(w, http.StatusConflict, detail(err, service.ErrConflict, "Resource already exists"))
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// detail extracts the text following "<sentinel>: " in err, capitalized,
// or returns fallback.
func detail(err, sentinel error, fallback string) string {
	prefix := sentinel.Error() + ": "
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return fallback
	}
	msg = strings.TrimPrefix(msg, prefix)
	if msg == "" {
		return fallback
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// readJSON decodes the request body into v and writes a 400 or 413 on
// failure. It reports whether decoding succeeded.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Request body too large (max %d bytes)", maxErr.Limit))
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "Request body is required")
	default:
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return false
}

// pathID parses the {id} URL parameter. It writes a 400 and returns false
// when the value is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id: "+raw)
		return 0, false
	}
	return id, true
}

// queryPage reads the page and limit query parameters.
func queryPage(r *http.Request) model.Page {
	q := r.URL.Query()
	page, limit := query.ParsePage(q.Get("page"), q.Get("limit"), defaultPageSize, maxPageSize)
	return model.Page{Page: page, Limit: limit}
}

// queryBool extracts an optional boolean query parameter. It returns nil
// when the parameter is absent; a malformed value is a validation error.
func queryBool(r *http.Request, key string) (*bool, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, validate.Fieldf(key, "must be true or false")
	}
	return &b, nil
}

// queryString extracts a trimmed string query parameter.
func queryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
