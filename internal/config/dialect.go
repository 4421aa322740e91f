package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// Dialect captures the handful of DDL and insert differences between the
// supported backends. Queries are written with '?' placeholders and rebound
// by sqlx for the active driver.
type Dialect struct {
	Name       string // sqlite, postgres, mysql
	DriverName string // database/sql driver name
	AutoID     string
	Bool       string
	Timestamp  string
	LongText   string
	// ReturningID is true when LastInsertId is unsupported and inserts must
	// use a RETURNING clause instead.
	ReturningID bool
}

var dialects = map[string]Dialect{
	"sqlite": {
		Name:       "sqlite",
		DriverName: "sqlite",
		AutoID:     "INTEGER PRIMARY KEY AUTOINCREMENT",
		Bool:       "INTEGER",
		Timestamp:  "DATETIME",
		LongText:   "TEXT",
	},
	"postgres": {
		Name:        "postgres",
		DriverName:  "pgx",
		AutoID:      "BIGSERIAL PRIMARY KEY",
		Bool:        "BOOLEAN",
		Timestamp:   "TIMESTAMPTZ",
		LongText:    "TEXT",
		ReturningID: true,
	},
	"mysql": {
		Name:       "mysql",
		DriverName: "mysql",
		AutoID:     "BIGINT AUTO_INCREMENT PRIMARY KEY",
		Bool:       "BOOLEAN",
		Timestamp:  "DATETIME(6)",
		LongText:   "LONGTEXT",
	},
}

// LookupDialect returns the dialect registered for driver. "sqlite3" and
// "pgx" are accepted as aliases.
func LookupDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite3":
		driver = "sqlite"
	case "pgx", "postgresql":
		driver = "postgres"
	}
	d, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported database driver %q (supported: sqlite, postgres, mysql)", driver)
	}
	return d, nil
}

// SupportedDrivers returns the canonical driver names.
func SupportedDrivers() []string {
	return []string{"sqlite", "postgres", "mysql"}
}

// NormalizeDSN adjusts a user-supplied DSN so the driver can scan timestamps
// and parse credentials containing special characters.
func NormalizeDSN(driver, dsn string) string {
	d, err := LookupDialect(driver)
	if err != nil {
		return dsn
	}
	switch d.Name {
	case "mysql":
		return normalizeMySQLDSN(dsn)
	case "postgres":
		return normalizePostgresDSN(dsn)
	default:
		return dsn
	}
}

// normalizeMySQLDSN forces parseTime so DATETIME columns scan into time.Time,
// and UTC so stored timestamps compare consistently.
func normalizeMySQLDSN(dsn string) string {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return dsn
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN()
}

// normalizePostgresDSN re-encodes the userinfo of URL-style DSNs so that
// passwords with '@' or '/' survive parsing.
func normalizePostgresDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn
	}
	schemeEnd := strings.Index(dsn, "://") + 3
	rest := dsn[schemeEnd:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	userinfo, hostPart := rest[:at], rest[at+1:]
	user, pass, hasPass := strings.Cut(userinfo, ":")
	if u, err := url.PathUnescape(user); err == nil {
		user = u
	}
	var ui *url.Userinfo
	if hasPass {
		if p, err := url.PathUnescape(pass); err == nil {
			pass = p
		}
		ui = url.UserPassword(user, pass)
	} else {
		ui = url.User(user)
	}
	return dsn[:schemeEnd] + ui.String() + "@" + hostPart
}
