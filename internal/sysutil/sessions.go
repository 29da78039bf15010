package sysutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/zjrosen/greeterm/internal/cachemanager"
	"github.com/zjrosen/greeterm/internal/log"
)

// xdgDataDirsEnv lists the parent directories that hold session entries.
// It can change per distro after install (NixOS), so it is read at runtime.
const xdgDataDirsEnv = "XDG_DATA_DIRS"

const defaultDataDirs = "/usr/local/share:/usr/share"

const entryTTL = 5 * time.Minute

// Session is a launchable X11 or Wayland session.
type Session struct {
	// Name is the entry's display name and doubles as the identifier the
	// selection cache stores.
	Name string
	// Cmd is the launch command, X11 prefix already applied.
	Cmd []string
	// X11 marks entries found under xsessions rather than wayland-sessions.
	X11 bool
}

// desktopEntry is the parsed subset of a session desktop file.
type desktopEntry struct {
	name   string
	exec   []string
	hidden bool
}

// SessionLoader discovers session desktop entries. Parsed files are
// memoized; Flush drops the memo when the watcher reports a change.
type SessionLoader struct {
	x11Prefix []string
	extraDirs []string
	memo      *cachemanager.InMemoryCacheManager[string, desktopEntry]
	entries   *cachemanager.ReadThroughCache[string, desktopEntry, string]
}

// NewSessionLoader builds a loader. x11Prefix is a shell-style command line
// prepended to X11 session commands; extraDirs are scanned after the XDG
// data directories.
func NewSessionLoader(x11Prefix string, extraDirs []string) (*SessionLoader, error) {
	var prefix []string
	if x11Prefix != "" {
		var err error
		prefix, err = shlex.Split(x11Prefix)
		if err != nil {
			return nil, fmt.Errorf("splitting x11 prefix: %w", err)
		}
	}

	memo := cachemanager.NewInMemoryCacheManager[string, desktopEntry](
		"desktop-entries", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)

	l := &SessionLoader{
		x11Prefix: prefix,
		extraDirs: extraDirs,
		memo:      memo,
	}
	l.entries = cachemanager.NewReadThroughCache[string, desktopEntry, string](memo, loadEntry, false)
	return l, nil
}

// Dirs returns the session directories in scan order, xsessions then
// wayland-sessions per data directory.
func (l *SessionLoader) Dirs() []string {
	parents := strings.Split(defaultDataDirs, ":")
	if env := os.Getenv(xdgDataDirsEnv); env != "" {
		parents = strings.Split(env, ":")
	}

	var dirs []string
	for _, parent := range parents {
		if parent == "" {
			continue
		}
		dirs = append(dirs, filepath.Join(parent, "xsessions"), filepath.Join(parent, "wayland-sessions"))
	}
	return append(dirs, l.extraDirs...)
}

// Load scans every session directory. A file name that was already seen in
// an earlier directory is skipped, matching the XDG precedence rules.
// Unreadable or malformed entries are logged and skipped.
func (l *SessionLoader) Load(ctx context.Context) []Session {
	seen := make(map[string]struct{})
	var sessions []Session

	for _, dir := range l.Dirs() {
		x11 := filepath.Base(dir) == "xsessions"

		paths, err := filepath.Glob(filepath.Join(dir, "*.desktop"))
		if err != nil {
			log.Warn(log.CatSys, "bad session glob", "dir", dir, "error", err)
			continue
		}

		for _, path := range paths {
			id := filepath.Base(dir) + "/" + filepath.Base(path)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			entry, err := l.entries.Get(ctx, path, path, entryTTL)
			if err != nil {
				log.Warn(log.CatSys, "skipping session entry", "path", path, "error", err)
				continue
			}
			if entry.hidden || len(entry.exec) == 0 {
				continue
			}

			cmd := entry.exec
			if x11 && len(l.x11Prefix) > 0 {
				cmd = append(append([]string{}, l.x11Prefix...), cmd...)
			}
			sessions = append(sessions, Session{Name: entry.name, Cmd: cmd, X11: x11})
		}
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Name < sessions[j].Name })
	log.Info(log.CatSys, "loaded sessions", "count", len(sessions))
	return sessions
}

// Flush drops the desktop-entry memo so the next Load re-reads the files.
func (l *SessionLoader) Flush(ctx context.Context) {
	_ = l.memo.Flush(ctx)
}

// loadEntry reads and parses one desktop file.
func loadEntry(_ context.Context, path string) (desktopEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return desktopEntry{}, err
	}
	entry, err := parseDesktopEntry(string(data))
	if err != nil {
		return desktopEntry{}, err
	}
	if entry.name == "" {
		// Fall back to the file stem when the entry has no Name.
		entry.name = strings.TrimSuffix(filepath.Base(path), ".desktop")
	}
	return entry, nil
}

// parseDesktopEntry picks Name, Exec, Hidden and NoDisplay out of a desktop
// file. The first occurrence of each key wins.
func parseDesktopEntry(text string) (desktopEntry, error) {
	var entry desktopEntry
	var haveName, haveExec, hidden, noDisplay bool

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case !haveName && strings.HasPrefix(line, "Name="):
			entry.name = strings.TrimPrefix(line, "Name=")
			haveName = true
		case !haveExec && strings.HasPrefix(line, "Exec="):
			cmd, err := shlex.Split(strings.TrimPrefix(line, "Exec="))
			if err != nil {
				return desktopEntry{}, fmt.Errorf("splitting Exec line: %w", err)
			}
			entry.exec = cmd
			haveExec = true
		case strings.HasPrefix(line, "Hidden="):
			hidden = hidden || strings.TrimPrefix(line, "Hidden=") == "true"
		case strings.HasPrefix(line, "NoDisplay="):
			noDisplay = noDisplay || strings.TrimPrefix(line, "NoDisplay=") == "true"
		}
	}

	entry.hidden = hidden || noDisplay
	return entry, nil
}
