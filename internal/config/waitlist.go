package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storydesk/storydesk/internal/model"
)

const waitlistColumns = `id, email, name, company, source, status, created_at, updated_at`

// WaitlistFilter narrows a waitlist listing.
type WaitlistFilter struct {
	Status model.WaitlistStatus
	Search string
	Page   model.Page
}

// CreateWaitlistEntry inserts a signup. A second signup with the same email
// fails with ErrDuplicate.
func (s *Store) CreateWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Email = NormalizeEmail(e.Email)
	if e.Status == "" {
		e.Status = model.WaitlistPending
	}

	const q = `INSERT INTO waitlist_entries
		(email, name, company, source, status, created_at, updated_at)
		VALUES
		(:email, :name, :company, :source, :status, :created_at, :updated_at)`

	id, err := s.insert(ctx, q, e)
	if err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	e.ID = id
	return nil
}

// GetWaitlistEntry returns a signup by ID.
func (s *Store) GetWaitlistEntry(ctx context.Context, id int64) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	if err := s.get(ctx, &e, "SELECT "+waitlistColumns+" FROM waitlist_entries WHERE id = ?", id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get waitlist entry: %w", err)
	}
	return &e, nil
}

// ListWaitlist returns one page of signups, newest first, plus the total.
// A zero Page.Limit returns every matching row (used by the CSV export).
func (s *Store) ListWaitlist(ctx context.Context, f WaitlistFilter) ([]model.WaitlistEntry, int64, error) {
	var w whereBuilder
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	w.search(f.Search, "email", "name", "company")

	var total int64
	if err := s.get(ctx, &total, "SELECT COUNT(*) FROM waitlist_entries"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count waitlist: %w", err)
	}

	q := "SELECT " + waitlistColumns + " FROM waitlist_entries" + w.clause() + " ORDER BY created_at DESC, id DESC"
	args := w.args
	if f.Page.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Page.Limit, f.Page.Offset())
	}

	entries := []model.WaitlistEntry{}
	if err := s.selectRows(ctx, &entries, q, args...); err != nil {
		return nil, 0, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, total, nil
}

// SetWaitlistStatus moves a signup to status.
func (s *Store) SetWaitlistStatus(ctx context.Context, id int64, status model.WaitlistStatus) error {
	err := s.exec(ctx, "UPDATE waitlist_entries SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("set waitlist status: %w", err)
	}
	return err
}

// DeleteWaitlistEntry removes a signup by ID.
func (s *Store) DeleteWaitlistEntry(ctx context.Context, id int64) error {
	err := s.exec(ctx, "DELETE FROM waitlist_entries WHERE id = ?", id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	return err
}
