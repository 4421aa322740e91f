package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// ErrMissingJWTSecret is returned by Validate when no signing secret is
// configured. There is no built-in fallback secret.
var ErrMissingJWTSecret = errors.New("auth.jwt_secret is required (set STORYDESK_AUTH_JWT_SECRET)")

// AppConfig is the complete process configuration. It is built once at
// startup and passed to constructors explicitly.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	MaxBodySize     int64      `yaml:"max_body_size"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// DatabaseConfig selects the backing store. An empty DSN with the sqlite
// driver stores data in DataDir.
type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
}

// AuthConfig controls token signing and password hashing.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	TokenTTL   string `yaml:"token_ttl"`
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// RateLimitConfig sets per-IP request budgets for unauthenticated endpoints.
type RateLimitConfig struct {
	LoginPerMinute  int `yaml:"login_per_minute"`
	PublicPerMinute int `yaml:"public_per_minute"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns an AppConfig pre-filled with production defaults. The JWT
// secret is deliberately left empty.
func Defaults() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			MaxBodySize:     1 << 20,
			CORS:            CORSConfig{Origins: []string{"*"}},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Auth: AuthConfig{
			TokenTTL:   "24h",
			BcryptCost: 12,
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute:  10,
			PublicPerMinute: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetViperDefaults registers every default under its dotted key so that
// env vars and config files only need to override what they change.
func SetViperDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.cors.origins", d.Server.CORS.Origins)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.data_dir", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)
	v.SetDefault("rate_limit.login_per_minute", d.RateLimit.LoginPerMinute)
	v.SetDefault("rate_limit.public_per_minute", d.RateLimit.PublicPerMinute)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// FromViper reads the effective configuration out of v.
func FromViper(v *viper.Viper) *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ShutdownTimeout: v.GetString("server.shutdown_timeout"),
			MaxBodySize:     v.GetInt64("server.max_body_size"),
			CORS:            CORSConfig{Origins: v.GetStringSlice("server.cors.origins")},
		},
		Database: DatabaseConfig{
			Driver:  v.GetString("database.driver"),
			DSN:     v.GetString("database.dsn"),
			DataDir: v.GetString("database.data_dir"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("auth.jwt_secret"),
			TokenTTL:   v.GetString("auth.token_ttl"),
			BcryptCost: v.GetInt("auth.bcrypt_cost"),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute:  v.GetInt("rate_limit.login_per_minute"),
			PublicPerMinute: v.GetInt("rate_limit.public_per_minute"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if ttl, err := time.ParseDuration(c.Auth.TokenTTL); err != nil || ttl <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl must be a positive duration, got %q", c.Auth.TokenTTL))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost))
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout: %w", err))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if _, err := LookupDialect(c.Database.Driver); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TokenTTLDuration returns the parsed token lifetime. Call Validate first.
func (c *AppConfig) TokenTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.Auth.TokenTTL)
	return d
}

// ShutdownTimeoutDuration returns the parsed graceful shutdown timeout.
func (c *AppConfig) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// Redacted returns a copy safe to print: the JWT secret and DSN are masked.
func (c *AppConfig) Redacted() *AppConfig {
	out := *c
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = "********"
	}
	if out.Database.DSN != "" {
		out.Database.DSN = "********"
	}
	return &out
}

// YAML renders c as a YAML document.
func (c *AppConfig) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := Defaults().YAML()
	if err != nil {
		return err
	}
	header := []byte("# Storydesk configuration\n# auth.jwt_secret must be set here or via STORYDESK_AUTH_JWT_SECRET.\n\n")
	return os.WriteFile(path, append(header, data...), 0600)
}

// LoadFile parses a YAML configuration file on top of the defaults.
// ${VAR} references are expanded from the environment before parsing.
func LoadFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
