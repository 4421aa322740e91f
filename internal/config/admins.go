package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storydesk/storydesk/internal/model"
)

const adminColumns = `id, email, username, password_hash, name, role, is_active,
	last_login_at, created_at, updated_at`

// NormalizeEmail is the single case policy for login handles: trimmed and
// lower-cased, independent of the backend's collation.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAdmin inserts a new admin account. PasswordHash must already hold a
// hash; the store never sees plaintext. The ID, CreatedAt, and UpdatedAt
// fields are populated after a successful insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	if admin.PasswordHash == "" {
		return errors.New("insert admin: password hash is required")
	}
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now
	admin.Email = NormalizeEmail(admin.Email)

	const q = `INSERT INTO admins
		(email, username, password_hash, name, role, is_active, created_at, updated_at)
		VALUES
		(:email, :username, :password_hash, :name, :role, :is_active, :created_at, :updated_at)`

	id, err := s.insert(ctx, q, admin)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByEmail returns an admin by email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	err := s.get(ctx, &admin, "SELECT "+adminColumns+" FROM admins WHERE email = ?", NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// GetAdminByID returns an admin by primary key.
func (s *Store) GetAdminByID(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	if err := s.get(ctx, &admin, "SELECT "+adminColumns+" FROM admins WHERE id = ?", id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.selectRows(ctx, &admins, "SELECT "+adminColumns+" FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. This is used
// for first-run detection to allow the initial setup flow.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.get(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// CountActiveAdmins returns the number of admins allowed to log in.
func (s *Store) CountActiveAdmins(ctx context.Context) (int64, error) {
	var count int64
	if err := s.get(ctx, &count, "SELECT COUNT(*) FROM admins WHERE is_active = ?", true); err != nil {
		return 0, fmt.Errorf("count active admins: %w", err)
	}
	return count, nil
}

// UpdateAdminLastLogin records a successful login at ts. The timestamp only
// moves forward: an older ts than the stored one is ignored, which makes
// concurrent logins for the same account last-writer-wins in time order.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64, ts time.Time) error {
	ts = ts.UTC()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE admins SET last_login_at = ?
		 WHERE id = ? AND (last_login_at IS NULL OR last_login_at < ?)`), ts, id, ts)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	return nil
}

// UpdateAdminPassword replaces the stored hash for an admin.
func (s *Store) UpdateAdminPassword(ctx context.Context, id int64, hash string) error {
	if hash == "" {
		return errors.New("update admin password: hash is required")
	}
	err := s.exec(ctx, "UPDATE admins SET password_hash = ?, updated_at = ? WHERE id = ?",
		hash, time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("update admin password: %w", err)
	}
	return err
}

// SetAdminActive toggles the active flag. Deactivation is the only way an
// account is retired; rows are never deleted.
func (s *Store) SetAdminActive(ctx context.Context, id int64, active bool) error {
	err := s.exec(ctx, "UPDATE admins SET is_active = ?, updated_at = ? WHERE id = ?",
		active, time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("set admin active: %w", err)
	}
	return err
}

// SetAdminRole changes an admin's role. Already-issued tokens keep the role
// they were issued with until they expire.
func (s *Store) SetAdminRole(ctx context.Context, id int64, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("set admin role: invalid role %q", role)
	}
	err := s.exec(ctx, "UPDATE admins SET role = ?, updated_at = ? WHERE id = ?",
		string(role), time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("set admin role: %w", err)
	}
	return err
}
