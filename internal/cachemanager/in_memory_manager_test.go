package cachemanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type sessionEntry struct {
	Name string
	Cmd  []string
}

func TestInMemoryCacheManager_SetGet(t *testing.T) {
	cache := NewInMemoryCacheManager[string, sessionEntry]("session-cache", DefaultExpiration, DefaultCleanupInterval)
	entry := sessionEntry{Name: "Sway", Cmd: []string{"sway"}}
	cache.Set(context.Background(), "sway.desktop", entry, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "sway.desktop")
	require.True(t, ok)
	require.Equal(t, entry, got)
}

func TestInMemoryCacheManager_Miss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, sessionEntry]("session-cache", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "absent")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("session-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a", "1", DefaultExpiration)
	cache.Set(context.Background(), "b", "2", DefaultExpiration)

	require.NoError(t, cache.Delete(context.Background(), "a"))

	_, ok := cache.Get(context.Background(), "a")
	require.False(t, ok)
	_, ok = cache.Get(context.Background(), "b")
	require.True(t, ok)
}

func TestInMemoryCacheManager_Flush(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("session-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a", "1", DefaultExpiration)

	require.NoError(t, cache.Flush(context.Background()))

	_, ok := cache.Get(context.Background(), "a")
	require.False(t, ok)
}
