// Package cache persists each user's last session selection between logins.
// Entries are kept most-recent-first, capped in length, one per username,
// and stored as a small YAML document.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/greeterm/internal/log"
)

// DefaultLimit caps the number of remembered users.
const DefaultLimit = 100

// Kind distinguishes the two session descriptor forms.
type Kind string

const (
	// KindDesktopEntry references an XDG desktop-entry identifier.
	KindDesktopEntry Kind = "xdg"
	// KindCommand is a literal shell command line.
	KindCommand Kind = "cmd"
)

// Selection describes what to launch for a user at session start.
type Selection struct {
	Kind  Kind   `yaml:"kind"`
	Value string `yaml:"value"`
}

// Entry pairs a username with their last selection.
type Entry struct {
	Username string    `yaml:"username"`
	Session  Selection `yaml:"session"`
}

type document struct {
	Entries []Entry `yaml:"entries"`
}

// Cache is the in-memory MRU list. Not safe for concurrent use; the UI owns
// it on one goroutine.
type Cache struct {
	entries []Entry
	limit   int
}

// New returns an empty cache with the given entry limit. A limit of zero or
// less falls back to DefaultLimit.
func New(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Cache{limit: limit}
}

// Load reads the cache file at path. A missing file yields an empty cache
// without error; a corrupt file is an error and the caller decides whether
// to start fresh.
func Load(path string, limit int) (*Cache, error) {
	c := New(limit)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing cache: %w", err)
	}

	c.entries = doc.Entries
	c.dedupe()
	c.trim()
	return c, nil
}

// Save writes the cache to path, creating parent directories as needed.
func (c *Cache) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
	}

	data, err := yaml.Marshal(document{Entries: c.entries})
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	log.Debug(log.CatCache, "cache saved", "path", path, "entries", len(c.entries))
	return nil
}

// Remember records the selection for username, moving them to the front.
func (c *Cache) Remember(username string, sel Selection) {
	filtered := c.entries[:0]
	for _, e := range c.entries {
		if e.Username != username {
			filtered = append(filtered, e)
		}
	}
	c.entries = append([]Entry{{Username: username, Session: sel}}, filtered...)
	c.trim()
}

// Lookup returns the remembered selection for username.
func (c *Cache) Lookup(username string) (Selection, bool) {
	for _, e := range c.entries {
		if e.Username == username {
			return e.Session, true
		}
	}
	return Selection{}, false
}

// LastUser returns the most recently remembered username.
func (c *Cache) LastUser() (string, bool) {
	if len(c.entries) == 0 {
		return "", false
	}
	return c.entries[0].Username, true
}

// Len returns the number of remembered users.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries, most recent first.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// dedupe keeps only the most recent entry per username.
func (c *Cache) dedupe() {
	seen := make(map[string]struct{}, len(c.entries))
	kept := c.entries[:0]
	for _, e := range c.entries {
		if _, dup := seen[e.Username]; dup {
			continue
		}
		seen[e.Username] = struct{}{}
		kept = append(kept, e)
	}
	c.entries = kept
}

func (c *Cache) trim() {
	if len(c.entries) > c.limit {
		c.entries = c.entries[:c.limit]
	}
}
