package log

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// The package keeps one global logger behind a sync.Once, so everything is
// exercised from a single test.
func TestLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeterm.log")

	cleanup, err := Init(path)
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := Subscribe(ctx)

	Info(CatCtrl, "creating session", "username", "alice", "attempt", "a-1")
	Debug(CatIPC, "wire write", "bytes", 42)
	ErrorErr(CatIPC, "roundtrip failed", os.ErrClosed)

	select {
	case ev := <-events:
		require.Contains(t, ev.Payload, "creating session")
	case <-time.After(time.Second):
		t.Fatal("no log event republished")
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "[INFO] [ctrl] creating session username=alice attempt=a-1")
	require.Contains(t, text, "[DEBUG] [ipc] wire write bytes=42")
	require.Contains(t, text, "[ERROR] [ipc] roundtrip failed")

	// The log carries usernames; it must not be world readable.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Raising the minimum level filters debug lines.
	SetMinLevel(LevelWarn)
	Debug(CatIPC, "quiet now")
	Info(CatIPC, "quiet too")
	Warn(CatIPC, "still loud")
	SetMinLevel(LevelDebug)

	data, _ = os.ReadFile(path)
	require.NotContains(t, string(data), "quiet now")
	require.NotContains(t, string(data), "quiet too")
	require.Contains(t, string(data), "still loud")

	// Disabling drops everything.
	SetEnabled(false)
	Warn(CatIPC, "swallowed")
	SetEnabled(true)

	data, _ = os.ReadFile(path)
	require.NotContains(t, string(data), "swallowed")
}
