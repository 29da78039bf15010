// Package config provides configuration types and defaults for greeterm.
package config

import (
	"os"
	"path/filepath"

	"github.com/zjrosen/greeterm/internal/cache"
)

// Config holds all configuration options for greeterm.
type Config struct {
	// Greeting is shown above the login form.
	Greeting string `mapstructure:"greeting"`

	// SocketPath overrides the greetd socket path. Empty means use the
	// GREETD_SOCK environment variable.
	SocketPath string `mapstructure:"socket_path"`

	// Env is extra environment given to every started session, KEY: VALUE.
	Env map[string]string `mapstructure:"env"`

	Commands CommandsConfig `mapstructure:"commands"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// CommandsConfig holds the system power commands. Each is a shell-style
// command line; it is only used when logind is unreachable over D-Bus.
type CommandsConfig struct {
	Reboot   string `mapstructure:"reboot"`
	Poweroff string `mapstructure:"poweroff"`
}

// SessionsConfig controls session discovery.
type SessionsConfig struct {
	// X11Prefix is prepended to commands of X11 session entries,
	// e.g. "startx /usr/bin/env".
	X11Prefix string `mapstructure:"x11_prefix"`

	// ExtraDirs are scanned for session desktop entries in addition to the
	// XDG data directories.
	ExtraDirs []string `mapstructure:"extra_dirs"`
}

// CacheConfig controls the last-session cache.
type CacheConfig struct {
	Path  string `mapstructure:"path"`
	Limit int    `mapstructure:"limit"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Greeting: "Welcome back!",
		Commands: CommandsConfig{
			Reboot:   "systemctl reboot",
			Poweroff: "systemctl poweroff",
		},
		Sessions: SessionsConfig{
			X11Prefix: "startx /usr/bin/env",
		},
		Cache: CacheConfig{
			Path:  defaultCachePath(),
			Limit: cache.DefaultLimit,
		},
	}
}

func defaultCachePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "greeterm", "state.yaml")
	}
	return "/var/cache/greeterm/state.yaml"
}

// EnvList renders Env as KEY=VALUE pairs for start_session.
func (c Config) EnvList() []string {
	if len(c.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return out
}
