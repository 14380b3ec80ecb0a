// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

// Package config loads simpleauth configuration from defaults, an optional
// YAML file, and command-line flags, in that order of increasing precedence.
package config

import (
	"net/url"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full simpleauth configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Cookie        CookieConfig        `koanf:"cookie"`
	URLs          URLConfig           `koanf:"urls"`
	Reset         ResetConfig         `koanf:"reset"`
	Mail          MailConfig          `koanf:"mail"`
	Access        AccessConfig        `koanf:"access"`
	Observability ObservabilityConfig `koanf:"observability"`
	Log           LogConfig           `koanf:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
	// BaseURL is the externally visible origin, used to build reset links.
	BaseURL string `koanf:"base_url"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Name     string        `koanf:"name"`
	Path     string        `koanf:"path"`
	MaxAge   time.Duration `koanf:"max_age"`
	HTTPOnly bool          `koanf:"http_only"`
	Secure   bool          `koanf:"secure"`
}

// URLConfig configures where the boundary handlers send users: the login
// page for denied or failed requests, home after a successful login, and
// the post-logout landing page.
type URLConfig struct {
	Login  string `koanf:"login"`
	Home   string `koanf:"home"`
	Logout string `koanf:"logout"`
}

// ResetConfig configures password reset tokens and their cleanup.
type ResetConfig struct {
	TokenTTL        time.Duration `koanf:"token_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// MailConfig configures outbound reset mail. Mode "log" writes the reset
// link to the logs instead of sending, which is the development default.
type MailConfig struct {
	Mode     string `koanf:"mode"` // "smtp" or "log"
	Addr     string `koanf:"addr"`
	From     string `koanf:"from"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// AccessConfig configures request paths excluded from access checks.
type AccessConfig struct {
	Excluded []string `koanf:"excluded"`
}

// ObservabilityConfig configures the metrics and health endpoint listener.
type ObservabilityConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:    ":8080",
			BaseURL: "http://localhost:8080",
		},
		Cookie: CookieConfig{
			Name:     "session_token",
			Path:     "/",
			MaxAge:   30 * 24 * time.Hour,
			HTTPOnly: true,
		},
		URLs: URLConfig{
			Login:  "/session/new",
			Home:   "/",
			Logout: "/session/new",
		},
		Reset: ResetConfig{
			TokenTTL:        15 * time.Minute,
			CleanupInterval: time.Hour,
		},
		Mail: MailConfig{
			Mode: "log",
			From: "noreply@localhost",
		},
		Access: AccessConfig{
			Excluded: []string{"/passwords", "/passwords/**"},
		},
		Observability: ObservabilityConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9100",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then flags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, oops.Code("CONFIG_LOAD_FAILED").
					With("path", path).
					Wrap(err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Only flags the user actually set may override the file; unset flags
		// would otherwise bury file values under their empty defaults.
		changed := pflag.NewFlagSet("changed", pflag.ContinueOnError)
		flags.Visit(func(f *pflag.Flag) { changed.AddFlag(f) })
		if err := k.Load(posflag.Provider(changed, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if _, err := url.Parse(c.Server.BaseURL); err != nil || c.Server.BaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("base_url", c.Server.BaseURL).
			Errorf("server.base_url must be a valid URL")
	}
	if c.Cookie.Name == "" {
		return oops.Code("CONFIG_INVALID").Errorf("cookie.name is required")
	}
	if c.Cookie.MaxAge <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("cookie.max_age must be positive")
	}
	if c.URLs.Login == "" {
		return oops.Code("CONFIG_INVALID").Errorf("urls.login is required")
	}
	if c.URLs.Home == "" {
		return oops.Code("CONFIG_INVALID").Errorf("urls.home is required")
	}
	if c.URLs.Logout == "" {
		return oops.Code("CONFIG_INVALID").Errorf("urls.logout is required")
	}
	if c.Reset.TokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("reset.token_ttl must be positive")
	}
	if c.Reset.CleanupInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("reset.cleanup_interval must be positive")
	}
	switch c.Mail.Mode {
	case "smtp":
		if c.Mail.Addr == "" {
			return oops.Code("CONFIG_INVALID").Errorf("mail.addr is required when mail.mode is smtp")
		}
	case "log":
	default:
		return oops.Code("CONFIG_INVALID").
			With("mode", c.Mail.Mode).
			Errorf("mail.mode must be smtp or log")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be text or json")
	}
	return nil
}
