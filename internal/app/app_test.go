package app

import (
	"bytes"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/greeterm/internal/cache"
	"github.com/zjrosen/greeterm/internal/config"
	"github.com/zjrosen/greeterm/internal/controller"
	"github.com/zjrosen/greeterm/internal/greetd/fake"
	"github.com/zjrosen/greeterm/internal/power"
	"github.com/zjrosen/greeterm/internal/sysutil"
)

func testOptions(selections *cache.Cache, cachePath string) Options {
	return Options{
		Config:    config.Config{Greeting: "Welcome"},
		Cache:     selections,
		CachePath: cachePath,
		Users: []sysutil.User{
			{Name: "alice", FullName: "Alice Liddell", Shell: "/bin/zsh"},
			{Name: "bob", FullName: "Bob", Shell: "/bin/sh"},
		},
		Sessions: []sysutil.Session{
			{Name: "Sway", Cmd: []string{"sway"}},
			{Name: "i3", Cmd: []string{"startx", "i3"}, X11: true},
		},
		Demo: true,
	}
}

func TestApp_DemoLoginFlow(t *testing.T) {
	daemon := &fake.Daemon{Password: "demo"}
	ctrl := controller.New(&fake.Loopback{Daemon: daemon}, "alice")
	defer ctrl.Close()

	cachePath := t.TempDir() + "/state.yaml"
	m := New(ctrl, testOptions(cache.New(0), cachePath))

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Welcome"))
	}, teatest.WithDuration(3*time.Second))

	// Enter begins the attempt; the daemon answers with its password prompt.
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Password:"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("demo")})
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	tm.WaitFinished(t, teatest.WithFinalTimeout(5*time.Second))

	started, cmd := daemon.Started()
	require.True(t, started, "session should have been launched")
	require.Equal(t, []string{"sway"}, cmd)
	require.Equal(t, "alice", daemon.Username())

	// The successful selection was persisted for the next login.
	saved, err := cache.Load(cachePath, 0)
	require.NoError(t, err)
	sel, ok := saved.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, cache.KindDesktopEntry, sel.Kind)
	require.Equal(t, "Sway", sel.Value)
}

func TestApp_WrongPasswordShowsNoticeAndRetries(t *testing.T) {
	daemon := &fake.Daemon{Password: "demo"}
	ctrl := controller.New(&fake.Loopback{Daemon: daemon}, "alice")
	defer ctrl.Close()

	m := New(ctrl, testOptions(cache.New(0), t.TempDir()+"/state.yaml"))
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Password:"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("wrong")})
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Incorrect password"))
	}, teatest.WithDuration(3*time.Second))

	// The prompt survives the failure; the right password still logs in.
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("demo")})
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	tm.WaitFinished(t, teatest.WithFinalTimeout(5*time.Second))

	started, _ := daemon.Started()
	require.True(t, started)
}

func TestApp_SeedsFromCache(t *testing.T) {
	selections := cache.New(0)
	selections.Remember("bob", cache.Selection{Kind: cache.KindDesktopEntry, Value: "i3"})

	ctrl := controller.New(&fake.Loopback{Daemon: &fake.Daemon{}}, "alice")
	defer ctrl.Close()

	m := New(ctrl, testOptions(selections, t.TempDir()+"/state.yaml"))
	defer m.Close()

	require.Equal(t, "bob", m.userSel.Selected().Value, "last user preselected")
	require.Equal(t, "i3", m.sessSel.Selected().Value, "their session preselected")
	require.Equal(t, "bob", ctrl.Status().Username)
}

func TestApp_CachedCommandSelection(t *testing.T) {
	selections := cache.New(0)
	selections.Remember("alice", cache.Selection{Kind: cache.KindCommand, Value: "startx my-wm"})

	ctrl := controller.New(&fake.Loopback{Daemon: &fake.Daemon{}}, "alice")
	defer ctrl.Close()

	m := New(ctrl, testOptions(selections, t.TempDir()+"/state.yaml"))
	defer m.Close()

	require.True(t, m.useCommand)
	require.Equal(t, "startx my-wm", m.cmdInput.Value())
}

func TestApp_CancelWhileBusyIsNotFatal(t *testing.T) {
	ctrl := controller.New(&fake.Loopback{Daemon: &fake.Daemon{}}, "alice")
	defer ctrl.Close()

	m := New(ctrl, testOptions(cache.New(0), t.TempDir()+"/state.yaml"))
	defer m.Close()

	// Esc during an in-flight exchange makes Cancel report ErrBusy. That is
	// a rejected keypress, not a lost connection.
	next, _ := m.Update(cancelDoneMsg{err: controller.ErrBusy})
	m = next.(Model)
	require.False(t, m.failed, "a busy cancel must not lock the greeter")
	require.Empty(t, m.notices)

	next, _ = m.Update(cancelDoneMsg{err: controller.ErrDone})
	m = next.(Model)
	require.False(t, m.failed)

	// A transport failure during cancel still is fatal.
	next, _ = m.Update(cancelDoneMsg{err: errors.New("write unix: broken pipe")})
	m = next.(Model)
	require.True(t, m.failed)
}

func TestApp_NoSessionsOffersLoginShell(t *testing.T) {
	ctrl := controller.New(&fake.Loopback{Daemon: &fake.Daemon{}}, "alice")
	defer ctrl.Close()

	opts := testOptions(cache.New(0), t.TempDir()+"/state.yaml")
	opts.Sessions = nil
	m := New(ctrl, opts)
	defer m.Close()

	require.True(t, m.useCommand)
	require.Equal(t, "/bin/zsh", m.cmdInput.Value())
}

func TestApp_PowerDisabledInDemo(t *testing.T) {
	ctrl := controller.New(&fake.Loopback{Daemon: &fake.Daemon{}}, "alice")
	defer ctrl.Close()

	m := New(ctrl, testOptions(cache.New(0), t.TempDir()+"/state.yaml"))
	defer m.Close()

	msg := m.powerCmd(power.Reboot)()
	done, ok := msg.(powerDoneMsg)
	require.True(t, ok)
	require.ErrorContains(t, done.err, "disabled in demo mode")
}

func TestApp_RememberSelection_CommandMode(t *testing.T) {
	selections := cache.New(0)
	ctrl := controller.New(&fake.Loopback{Daemon: &fake.Daemon{}}, "alice")
	defer ctrl.Close()

	m := New(ctrl, testOptions(selections, t.TempDir()+"/state.yaml"))
	defer m.Close()

	m.useCommand = true
	m.cmdInput.SetValue("startx custom-wm")
	m.rememberSelection()

	sel, ok := selections.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, cache.KindCommand, sel.Kind)
	require.Equal(t, "startx custom-wm", sel.Value)
}

func TestUserOptions_Labels(t *testing.T) {
	opts := userOptions([]sysutil.User{
		{Name: "alice", FullName: "Alice Liddell"},
		{Name: "svc", FullName: ""},
	})

	require.Equal(t, "Alice Liddell (alice)", opts[0].Label)
	require.Equal(t, "alice", opts[0].Value)
	require.Equal(t, "svc", opts[1].Label)
}
