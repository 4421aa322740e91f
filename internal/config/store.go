package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the relational persistence layer for admins, stories, waitlist
// entries and contact submissions. It runs on SQLite by default and on
// PostgreSQL or MySQL when configured.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewStore opens a SQLite store inside dataDir. Pass empty string for an
// in-memory database.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL&_time_format=sqlite"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "storydesk.db") + "?_journal_mode=WAL&_busy_timeout=5000&_time_format=sqlite"
	}
	return Open("sqlite", dsn)
}

// Open connects to the database identified by driver and dsn and applies
// migrations.
func Open(driver, dsn string) (*Store, error) {
	dialect, err := LookupDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(dialect.DriverName, NormalizeDSN(dialect.Name, dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect.Name, err)
	}

	if dialect.Name == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect returns the SQL dialect of the open database.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// insert runs a named INSERT and returns the generated primary key.
func (s *Store) insert(ctx context.Context, q string, arg interface{}) (int64, error) {
	query, args, err := sqlx.Named(q, arg)
	if err != nil {
		return 0, err
	}
	query = s.db.Rebind(query)

	if s.dialect.ReturningID {
		var id int64
		if err := s.db.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, classify(err)
		}
		return id, nil
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return result.LastInsertId()
}

// exec runs a '?'-style statement and maps zero affected rows to ErrNotFound.
func (s *Store) exec(ctx context.Context, q string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return classify(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest interface{}, q string, args ...interface{}) error {
	if err := s.db.GetContext(ctx, dest, s.db.Rebind(q), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) selectRows(ctx context.Context, dest interface{}, q string, args ...interface{}) error {
	return s.db.SelectContext(ctx, dest, s.db.Rebind(q), args...)
}

// classify maps driver-specific unique constraint violations to ErrDuplicate.
func classify(err error) error {
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "unique constraint"),
		strings.Contains(lower, "duplicate key"),
		strings.Contains(lower, "duplicate entry"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// whereBuilder accumulates AND-ed conditions and their arguments.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// search adds a case-insensitive LIKE across columns.
func (w *whereBuilder) search(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	pattern := "%" + strings.ToLower(term) + "%"
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = "LOWER(" + c + ") LIKE ?"
		w.args = append(w.args, pattern)
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
