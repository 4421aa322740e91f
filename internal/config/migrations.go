package config

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	d := s.dialect
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS admins (
			id %s,
			email VARCHAR(255) UNIQUE NOT NULL,
			username VARCHAR(64) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			role VARCHAR(32) NOT NULL DEFAULT 'editor',
			is_active %s NOT NULL DEFAULT TRUE,
			last_login_at %s NULL,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, d.AutoID, d.Bool, d.Timestamp, d.Timestamp, d.Timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stories (
			id %s,
			title VARCHAR(255) NOT NULL,
			slug VARCHAR(255) UNIQUE NOT NULL,
			excerpt VARCHAR(1000) NOT NULL DEFAULT '',
			content %s NOT NULL,
			author VARCHAR(255) NOT NULL DEFAULT '',
			cover_image_url VARCHAR(1024) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'draft',
			is_featured %s NOT NULL DEFAULT FALSE,
			published_at %s NULL,
			created_by BIGINT NULL,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, d.AutoID, d.LongText, d.Bool, d.Timestamp, d.Timestamp, d.Timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS waitlist_entries (
			id %s,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			company VARCHAR(255) NOT NULL DEFAULT '',
			source VARCHAR(64) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, d.AutoID, d.Timestamp, d.Timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contact_submissions (
			id %s,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			subject VARCHAR(255) NOT NULL DEFAULT '',
			message %s NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'new',
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, d.AutoID, d.LongText, d.Timestamp, d.Timestamp),

		`CREATE INDEX idx_stories_status ON stories(status)`,
		`CREATE INDEX idx_waitlist_created ON waitlist_entries(created_at)`,
		`CREATE INDEX idx_contacts_created ON contact_submissions(created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Indexes are created without IF NOT EXISTS because MySQL lacks
			// it; an existing index is a no-op.
			if isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "already exists") ||
		strings.Contains(lower, "duplicate key name")
}
