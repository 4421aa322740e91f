package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storydesk/storydesk/internal/model"
)

const contactColumns = `id, name, email, subject, message, status, created_at, updated_at`

// ContactFilter narrows a contact listing.
type ContactFilter struct {
	Status model.ContactStatus
	Search string
	Page   model.Page
}

// CreateContact stores a contact form submission with status "new".
func (s *Store) CreateContact(ctx context.Context, c *model.ContactSubmission) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Status = model.ContactNew

	const q = `INSERT INTO contact_submissions
		(name, email, subject, message, status, created_at, updated_at)
		VALUES
		(:name, :email, :subject, :message, :status, :created_at, :updated_at)`

	id, err := s.insert(ctx, q, c)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	c.ID = id
	return nil
}

// GetContact returns a submission by ID.
func (s *Store) GetContact(ctx context.Context, id int64) (*model.ContactSubmission, error) {
	var c model.ContactSubmission
	if err := s.get(ctx, &c, "SELECT "+contactColumns+" FROM contact_submissions WHERE id = ?", id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

// ListContacts returns one page of submissions, newest first, plus the total.
func (s *Store) ListContacts(ctx context.Context, f ContactFilter) ([]model.ContactSubmission, int64, error) {
	var w whereBuilder
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	w.search(f.Search, "name", "email", "subject")

	var total int64
	if err := s.get(ctx, &total, "SELECT COUNT(*) FROM contact_submissions"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	q := "SELECT " + contactColumns + " FROM contact_submissions" + w.clause() +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args := append(w.args, f.Page.Limit, f.Page.Offset())

	contacts := []model.ContactSubmission{}
	if err := s.selectRows(ctx, &contacts, q, args...); err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, total, nil
}

// SetContactStatus moves a submission to status.
func (s *Store) SetContactStatus(ctx context.Context, id int64, status model.ContactStatus) error {
	err := s.exec(ctx, "UPDATE contact_submissions SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("set contact status: %w", err)
	}
	return err
}

// MarkContactRead flips a "new" submission to "read". Other states are left
// untouched.
func (s *Store) MarkContactRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		"UPDATE contact_submissions SET status = ?, updated_at = ? WHERE id = ? AND status = ?"),
		string(model.ContactRead), time.Now().UTC(), id, string(model.ContactNew))
	if err != nil {
		return fmt.Errorf("mark contact read: %w", err)
	}
	return nil
}

// DeleteContact removes a submission by ID.
func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	err := s.exec(ctx, "DELETE FROM contact_submissions WHERE id = ?", id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete contact: %w", err)
	}
	return err
}
