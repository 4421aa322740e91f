package config

import (
	"context"
	"fmt"
	"time"

	"github.com/storydesk/storydesk/internal/model"
)

type statusCountRow struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

// statusCounts runs a GROUP BY status over table. table is always a
// package constant, never client input.
func (s *Store) statusCounts(ctx context.Context, table string) (model.StatusCounts, error) {
	var rows []statusCountRow
	q := "SELECT status, COUNT(*) AS count FROM " + table + " GROUP BY status"
	if err := s.selectRows(ctx, &rows, q); err != nil {
		return model.StatusCounts{}, fmt.Errorf("count %s by status: %w", table, err)
	}
	out := model.StatusCounts{ByStatus: make(map[string]int64, len(rows))}
	for _, r := range rows {
		out.ByStatus[r.Status] = r.Count
		out.Total += r.Count
	}
	return out, nil
}

// DashboardStats returns per-status totals for every managed resource.
func (s *Store) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	stories, err := s.statusCounts(ctx, "stories")
	if err != nil {
		return nil, err
	}
	waitlist, err := s.statusCounts(ctx, "waitlist_entries")
	if err != nil {
		return nil, err
	}
	contacts, err := s.statusCounts(ctx, "contact_submissions")
	if err != nil {
		return nil, err
	}
	admins, err := s.CountActiveAdmins(ctx)
	if err != nil {
		return nil, err
	}
	return &model.DashboardStats{
		Stories:      stories,
		Waitlist:     waitlist,
		Contacts:     contacts,
		ActiveAdmins: admins,
	}, nil
}

// DailyWaitlistSignups returns signups per UTC day in [since, now].
func (s *Store) DailyWaitlistSignups(ctx context.Context, since, now time.Time) ([]model.DailyCount, error) {
	return s.dailyCounts(ctx, "waitlist_entries", since, now)
}

// DailyContactMessages returns contact submissions per UTC day in [since, now].
func (s *Store) DailyContactMessages(ctx context.Context, since, now time.Time) ([]model.DailyCount, error) {
	return s.dailyCounts(ctx, "contact_submissions", since, now)
}

// dailyCounts returns one entry per UTC day in [since, now], including days
// with zero rows. Bucketing happens in Go so the query stays portable across
// dialects.
func (s *Store) dailyCounts(ctx context.Context, table string, since, now time.Time) ([]model.DailyCount, error) {
	since = truncateDay(since.UTC())
	now = now.UTC()

	var stamps []time.Time
	q := "SELECT created_at FROM " + table + " WHERE created_at >= ? ORDER BY created_at"
	if err := s.selectRows(ctx, &stamps, q, since); err != nil {
		return nil, fmt.Errorf("daily counts for %s: %w", table, err)
	}

	buckets := make(map[string]int64, len(stamps))
	for _, ts := range stamps {
		buckets[ts.UTC().Format("2006-01-02")]++
	}

	var out []model.DailyCount
	for d := since; !d.After(now); d = d.AddDate(0, 0, 1) {
		day := d.Format("2006-01-02")
		out = append(out, model.DailyCount{Day: day, Count: buckets[day]})
	}
	return out, nil
}

// RecentWaitlist returns the n newest signups.
func (s *Store) RecentWaitlist(ctx context.Context, n int) ([]model.WaitlistEntry, error) {
	entries, _, err := s.ListWaitlist(ctx, WaitlistFilter{Page: model.Page{Page: 1, Limit: n}})
	return entries, err
}

// RecentContacts returns the n newest contact submissions.
func (s *Store) RecentContacts(ctx context.Context, n int) ([]model.ContactSubmission, error) {
	contacts, _, err := s.ListContacts(ctx, ContactFilter{Page: model.Page{Page: 1, Limit: n}})
	return contacts, err
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
