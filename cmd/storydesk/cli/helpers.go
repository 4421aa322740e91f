package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/service"
)

// resolveDataDir returns the SQLite data directory from --data-dir,
// STORYDESK_DATABASE_DATA_DIR or the config file, falling back to
// ~/.storydesk.
func resolveDataDir(cfg *config.AppConfig) string {
	if cfg.Database.DataDir != "" {
		return cfg.Database.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".storydesk")
}

// loadConfig builds and validates the effective configuration. Commands
// that never issue tokens pass requireSecret=false; an ephemeral secret is
// substituted so the rest of the config is still checked.
func loadConfig(requireSecret bool) (*config.AppConfig, error) {
	cfg := config.FromViper(v)
	if !requireSecret && cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = ephemeralSecret()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// newLogger builds the process logger from the log section.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore opens the configured database. SQLite without a DSN lives in the
// data directory.
func openStore(cfg *config.AppConfig) (*config.Store, error) {
	dialect, err := config.LookupDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if dialect.Name == "sqlite" && cfg.Database.DSN == "" {
		return config.NewStore(resolveDataDir(cfg))
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required for driver %q", dialect.Name)
	}
	return config.Open(dialect.Name, cfg.Database.DSN)
}

// newAuthService wires the password hasher and token issuer from cfg.
func newAuthService(cfg *config.AppConfig, store *config.Store, logger *slog.Logger) (*service.AuthService, error) {
	hasher, err := service.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens, err := service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.TokenTTLDuration())
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(store, hasher, tokens, logger), nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
