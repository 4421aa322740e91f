package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/validate"
)

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
	recentItems          = 5
)

// DashboardHandler serves aggregate statistics for the admin home page.
type DashboardHandler struct {
	store  *config.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(store *config.Store, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{store: store, logger: logger, now: time.Now}
}

// Stats returns totals per resource and status.
// GET /api/v1/admin/dashboard/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// Analytics returns daily signup and message counts for the last N days
// plus the most recent entries of each.
// GET /api/v1/admin/dashboard/analytics?days=30
func (h *DashboardHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days := defaultAnalyticsDays
	if raw := queryString(r, "days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAnalyticsDays {
			writeServiceError(w, r, h.logger,
				validate.Fieldf("days", "must be an integer between 1 and %d", maxAnalyticsDays))
			return
		}
		days = n
	}

	ctx := r.Context()
	now := h.now().UTC()
	since := now.AddDate(0, 0, -(days - 1))

	out := model.Analytics{Days: days}
	var err error
	if out.WaitlistSignups, err = h.store.DailyWaitlistSignups(ctx, since, now); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if out.ContactMessages, err = h.store.DailyContactMessages(ctx, since, now); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if out.RecentWaitlist, err = h.store.RecentWaitlist(ctx, recentItems); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if out.RecentContacts, err = h.store.RecentContacts(ctx, recentItems); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, out)
}
