package handler

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/validate"
)

// WaitlistHandler serves the public signup form and its admin view.
type WaitlistHandler struct {
	store  *config.Store
	logger *slog.Logger
}

// NewWaitlistHandler creates a new WaitlistHandler.
func NewWaitlistHandler(store *config.Store, logger *slog.Logger) *WaitlistHandler {
	return &WaitlistHandler{store: store, logger: logger}
}

// WaitlistRequest is the public signup payload.
type WaitlistRequest struct {
	Email   string `json:"email" validate:"required,email,max=255"`
	Name    string `json:"name" validate:"max=255"`
	Company string `json:"company" validate:"max=255"`
	Source  string `json:"source" validate:"max=64"`
}

// WaitlistStatusRequest is the payload for UpdateStatus.
type WaitlistStatusRequest struct {
	Status model.WaitlistStatus `json:"status" validate:"required,oneof=pending invited joined"`
}

// Join adds an email to the waitlist.
// POST /api/v1/waitlist
func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req WaitlistRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Email = config.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Company = strings.TrimSpace(req.Company)
	req.Source = strings.TrimSpace(req.Source)
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	entry := &model.WaitlistEntry{
		Email:   req.Email,
		Name:    req.Name,
		Company: req.Company,
		Source:  req.Source,
	}
	if err := h.store.CreateWaitlistEntry(r.Context(), entry); err != nil {
		if errors.Is(err, config.ErrDuplicate) {
			writeError(w, http.StatusConflict, "This email is already on the waitlist")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.DataResponse{
		Success: true,
		Message: "You're on the list!",
		Data:    entry,
	})
}

func (h *WaitlistHandler) filter(r *http.Request) (config.WaitlistFilter, error) {
	status := model.WaitlistStatus(queryString(r, "status"))
	if status != "" && !status.Valid() {
		return config.WaitlistFilter{}, validate.Fieldf("status", "must be one of: pending, invited, joined")
	}
	return config.WaitlistFilter{Status: status, Search: queryString(r, "search")}, nil
}

// List returns waitlist entries, newest first.
// GET /api/v1/admin/waitlist
func (h *WaitlistHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	f.Page = queryPage(r)
	entries, total, err := h.store.ListWaitlist(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeList(w, entries, len(entries), total, f.Page)
}

// UpdateStatus moves an entry to a new status.
// PATCH /api/v1/admin/waitlist/{id}
func (h *WaitlistHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req WaitlistStatusRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.store.SetWaitlistStatus(r.Context(), id, req.Status); err != nil {
		h.writeEntryError(w, r, err)
		return
	}
	entry, err := h.store.GetWaitlistEntry(r.Context(), id)
	if err != nil {
		h.writeEntryError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entry)
}

// Delete removes an entry.
// DELETE /api/v1/admin/waitlist/{id}
func (h *WaitlistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteWaitlistEntry(r.Context(), id); err != nil {
		h.writeEntryError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Waitlist entry deleted")
}

// Export streams every matching entry as CSV.
// GET /api/v1/admin/waitlist/export
func (h *WaitlistHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	entries, _, err := h.store.ListWaitlist(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	filename := "waitlist-" + time.Now().UTC().Format("20060102") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "email", "name", "company", "source", "status", "created_at"})
	for _, e := range entries {
		cw.Write([]string{
			strconv.FormatInt(e.ID, 10),
			csvCell(e.Email),
			csvCell(e.Name),
			csvCell(e.Company),
			csvCell(e.Source),
			string(e.Status),
			e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("waitlist export failed", "error", err)
	}
}

func (h *WaitlistHandler) writeEntryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, config.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Waitlist entry not found")
		return
	}
	writeServiceError(w, r, h.logger, err)
}

// csvCell neutralizes values a spreadsheet would evaluate as a formula.
func csvCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
