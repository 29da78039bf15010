// Package sysutil enumerates the system users a greeter can log in and the
// X11/Wayland sessions it can launch.
package sysutil

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/zjrosen/greeterm/internal/log"
)

// DefaultShell is used when a passwd entry has no login shell.
const DefaultShell = "/bin/sh"

// Default paths, overridable in tests.
const (
	PasswdPath    = "/etc/passwd"
	LoginDefsPath = "/etc/login.defs"
)

// User is a login candidate from the passwd database.
type User struct {
	Name     string
	FullName string
	Shell    string
}

// LoadUsers reads the passwd file and keeps the normal users, bounded by the
// UID_MIN/UID_MAX range from the login.defs file. A missing or unreadable
// login.defs falls back to the conventional 1000..60000 range.
func LoadUsers(passwdPath, loginDefsPath string) ([]User, error) {
	limits := defaultUIDRange()
	if text, err := os.ReadFile(loginDefsPath); err == nil {
		limits = parseLoginDefs(string(text))
	} else {
		log.Warn(log.CatSys, "cannot read UID limits, using defaults", "path", loginDefsPath, "error", err)
	}

	data, err := os.ReadFile(passwdPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", passwdPath, err)
	}

	var users []User
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// name:passwd:uid:gid:gecos:home:shell
		fields := strings.Split(line, ":")
		if len(fields) < 7 {
			continue
		}
		uid, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil || !limits.contains(uid) {
			continue
		}

		name := fields[0]
		shell := fields[6]
		if shell == "" {
			shell = DefaultShell
		}
		users = append(users, User{
			Name:     name,
			FullName: fullNameFromGecos(fields[4], name),
			Shell:    shell,
		})
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	log.Info(log.CatSys, "loaded users", "count", len(users))
	return users, nil
}

// fullNameFromGecos extracts the display name from the gecos field. Only the
// part before the first comma counts; "&" stands for the capitalized login
// name, an old passwd convention.
func fullNameFromGecos(gecos, login string) string {
	name := gecos
	if i := strings.IndexByte(name, ','); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return login
	}
	if name == "&" {
		return capitalize(login)
	}
	return name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// uidRange bounds the UIDs considered normal users.
type uidRange struct {
	min uint64
	max uint64
}

const (
	uidMinDefault = 1_000
	uidMaxDefault = 60_000
)

func defaultUIDRange() uidRange {
	return uidRange{min: uidMinDefault, max: uidMaxDefault}
}

// contains is a half-open range check: root and system accounts fall below,
// reserved ranges above.
func (r uidRange) contains(uid uint64) bool {
	return uid >= r.min && uid < r.max
}

// parseLoginDefs scans the login.defs text for UID_MIN and UID_MAX. The
// first occurrence of each wins; a missing or malformed value keeps its
// default. Values may be decimal, octal (leading 0) or hex (leading 0x).
func parseLoginDefs(text string) uidRange {
	r := defaultUIDRange()
	var haveMin, haveMax bool

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case !haveMin && strings.HasPrefix(line, "UID_MIN"):
			rest := line[len("UID_MIN"):]
			if startsWithSpace(rest) {
				if v, ok := parseUID(rest); ok {
					r.min = v
					haveMin = true
				}
			}
		case !haveMax && strings.HasPrefix(line, "UID_MAX"):
			rest := line[len("UID_MAX"):]
			if startsWithSpace(rest) {
				if v, ok := parseUID(rest); ok {
					r.max = v
					haveMax = true
				}
			}
		}
		if haveMin && haveMax {
			break
		}
	}
	return r
}

func startsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[0]))
}

func parseUID(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if s == "0" {
		return 0, true
	}
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		return v, err == nil
	}
	if rest, ok := strings.CutPrefix(s, "0"); ok {
		v, err := strconv.ParseUint(rest, 8, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}
