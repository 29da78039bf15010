package config

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/greeterm/internal/cache"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.NotEmpty(t, cfg.Greeting)
	require.Equal(t, "systemctl reboot", cfg.Commands.Reboot)
	require.Equal(t, "systemctl poweroff", cfg.Commands.Poweroff)
	require.Equal(t, "startx /usr/bin/env", cfg.Sessions.X11Prefix)
	require.Equal(t, cache.DefaultLimit, cfg.Cache.Limit)
	require.NotEmpty(t, cfg.Cache.Path)
}

func TestEnvList(t *testing.T) {
	cfg := Config{Env: map[string]string{
		"XDG_SESSION_TYPE": "wayland",
		"FOO":              "bar",
	}}

	env := cfg.EnvList()
	sort.Strings(env)
	require.Equal(t, []string{"FOO=bar", "XDG_SESSION_TYPE=wayland"}, env)
}

func TestEnvList_Empty(t *testing.T) {
	require.Empty(t, Config{}.EnvList())
}
