package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/validate"
)

// ContactHandler serves the public contact form and the admin inbox.
type ContactHandler struct {
	store  *config.Store
	logger *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(store *config.Store, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{store: store, logger: logger}
}

// ContactRequest is the public contact form payload.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Subject string `json:"subject" validate:"max=255"`
	Message string `json:"message" validate:"required,max=5000"`
}

// ContactStatusRequest is the payload for UpdateStatus.
type ContactStatusRequest struct {
	Status model.ContactStatus `json:"status" validate:"required,oneof=new read replied archived"`
}

// Submit stores a contact form message.
// POST /api/v1/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	c := &model.ContactSubmission{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}
	if err := h.store.CreateContact(r.Context(), c); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.DataResponse{
		Success: true,
		Message: "Thanks, we'll be in touch.",
		Data:    c,
	})
}

// List returns contact submissions, newest first.
// GET /api/v1/admin/contacts
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.ContactStatus(queryString(r, "status"))
	if status != "" && !status.Valid() {
		writeServiceError(w, r, h.logger,
			validate.Fieldf("status", "must be one of: new, read, replied, archived"))
		return
	}
	f := config.ContactFilter{Status: status, Search: queryString(r, "search"), Page: queryPage(r)}
	items, total, err := h.store.ListContacts(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeList(w, items, len(items), total, f.Page)
}

// Get returns one submission. Opening a new submission marks it read.
// GET /api/v1/admin/contacts/{id}
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.store.GetContact(r.Context(), id)
	if err != nil {
		h.writeContactError(w, r, err)
		return
	}
	if c.Status == model.ContactNew {
		if err := h.store.MarkContactRead(r.Context(), id); err != nil && !errors.Is(err, config.ErrNotFound) {
			writeServiceError(w, r, h.logger, err)
			return
		}
		c.Status = model.ContactRead
	}
	writeData(w, http.StatusOK, c)
}

// UpdateStatus sets the triage status of a submission.
// PATCH /api/v1/admin/contacts/{id}
func (h *ContactHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ContactStatusRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.store.SetContactStatus(r.Context(), id, req.Status); err != nil {
		h.writeContactError(w, r, err)
		return
	}
	c, err := h.store.GetContact(r.Context(), id)
	if err != nil {
		h.writeContactError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

// Delete removes a submission.
// DELETE /api/v1/admin/contacts/{id}
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteContact(r.Context(), id); err != nil {
		h.writeContactError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Contact submission deleted")
}

func (h *ContactHandler) writeContactError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, config.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Contact submission not found")
		return
	}
	writeServiceError(w, r, h.logger, err)
}
