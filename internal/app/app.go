// Package app contains the root greeter model.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/shlex"

	"github.com/zjrosen/greeterm/internal/cache"
	"github.com/zjrosen/greeterm/internal/config"
	"github.com/zjrosen/greeterm/internal/controller"
	"github.com/zjrosen/greeterm/internal/keys"
	"github.com/zjrosen/greeterm/internal/log"
	"github.com/zjrosen/greeterm/internal/power"
	"github.com/zjrosen/greeterm/internal/pubsub"
	"github.com/zjrosen/greeterm/internal/secret"
	"github.com/zjrosen/greeterm/internal/sysutil"
	"github.com/zjrosen/greeterm/internal/ui/selector"
	"github.com/zjrosen/greeterm/internal/watcher"
)

// focus identifies the active field of the login form.
type focus int

const (
	focusUser focus = iota
	focusSession
	focusCommand
	focusInput
)

// maxNotices is how many notice lines are kept on screen.
const maxNotices = 3

// Model is the root greeter state.
type Model struct {
	ctrl   *controller.Controller
	cfg    config.Config
	keymap keys.KeyMap

	// Selection cache, persisted on successful start.
	cache     *cache.Cache
	cachePath string

	users    []sysutil.User
	sessions []sysutil.Session
	loader   *sysutil.SessionLoader

	userSel  selector.Model
	sessSel  selector.Model
	cmdInput textinput.Model
	input    textinput.Model

	// useCommand switches session start from the selected desktop entry to
	// the hand-edited command line.
	useCommand bool
	focused    focus

	notices []controller.Notice
	width   int
	height  int

	// demo disables the power actions.
	demo   bool
	failed bool

	ctx    context.Context
	cancel context.CancelFunc

	noticeListener *pubsub.ContinuousListener[controller.Notice]
	watchListener  *pubsub.ContinuousListener[watcher.Event]
	watcherHandle  *watcher.Watcher
}

// Options bundles everything the greeter needs besides the controller.
type Options struct {
	Config    config.Config
	Cache     *cache.Cache
	CachePath string
	Users     []sysutil.User
	Sessions  []sysutil.Session
	Loader    *sysutil.SessionLoader
	Watcher   *watcher.Watcher
	Demo      bool
}

// New creates the root model. The controller must still be in its initial
// phase; the model selects the cached user and session before the first
// exchange.
func New(ctrl *controller.Controller, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	input := textinput.New()
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.Prompt = "> "
	input.CharLimit = 256

	cmdInput := textinput.New()
	cmdInput.Prompt = "$ "
	cmdInput.Placeholder = "session command"
	cmdInput.CharLimit = 512

	m := Model{
		ctrl:      ctrl,
		cfg:       opts.Config,
		keymap:    keys.DefaultKeyMap(),
		cache:     opts.Cache,
		cachePath: opts.CachePath,
		users:     opts.Users,
		sessions:  opts.Sessions,
		loader:    opts.Loader,
		userSel:   selector.New("User", userOptions(opts.Users)).Focus(),
		sessSel:   selector.New("Session", sessionOptions(opts.Sessions)),
		cmdInput:  cmdInput,
		input:     input,
		focused:   focusUser,
		demo:      opts.Demo,
		ctx:       ctx,
		cancel:    cancel,
	}

	m.noticeListener = pubsub.NewContinuousListener(ctx, ctrl.Events())
	if opts.Watcher != nil {
		m.watcherHandle = opts.Watcher
		m.watchListener = pubsub.NewContinuousListener(ctx, opts.Watcher.Broker())
	}

	// Seed the form from the last successful login.
	if user, ok := m.cache.LastUser(); ok {
		m.userSel = m.userSel.SelectValue(user)
	}
	m.applyUser()

	return m
}

// Close releases the model's background resources.
func (m *Model) Close() {
	m.cancel()
	if m.watcherHandle != nil {
		_ = m.watcherHandle.Stop()
	}
	secret.Purge()
}

// Init starts the event listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.noticeListener.Listen()}
	if m.watchListener != nil {
		cmds = append(cmds, m.watchListener.Listen())
	}
	return tea.Batch(cmds...)
}

// Message types for command results.
type (
	advanceDoneMsg struct{ err error }
	cancelDoneMsg  struct{ err error }
	powerDoneMsg   struct {
		action power.Action
		err    error
	}
	sessionsLoadedMsg struct{ sessions []sysutil.Session }
	startFinishedMsg  struct{}
)

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case pubsub.Event[controller.Notice]:
		return m.updateNotice(msg)

	case pubsub.Event[watcher.Event]:
		cmds := []tea.Cmd{m.watchListener.Listen()}
		if msg.Payload.Kind == watcher.EntriesChanged {
			cmds = append(cmds, m.reloadSessionsCmd())
		}
		return m, tea.Batch(cmds...)

	case sessionsLoadedMsg:
		m.sessions = msg.sessions
		m.sessSel = m.sessSel.SetOptions(sessionOptions(msg.sessions))
		m.applySession()
		return m, nil

	case advanceDoneMsg:
		return m.updateAdvanceDone(msg.err)

	case cancelDoneMsg:
		if errors.Is(msg.err, controller.ErrBusy) || errors.Is(msg.err, controller.ErrDone) {
			// Esc raced an in-flight exchange; the attempt is still live.
			return m, nil
		}
		if msg.err != nil {
			m.failed = true
			m.pushNotice(controller.Notice{Severity: controller.SeverityError, Text: msg.err.Error()})
		}
		m.focused = focusUser
		m.syncFocus()
		return m, nil

	case powerDoneMsg:
		if msg.err != nil {
			m.pushNotice(controller.Notice{
				Severity: controller.SeverityError,
				Text:     fmt.Sprintf("%s failed: %v", msg.action, msg.err),
			})
		}
		return m, nil

	case startFinishedMsg:
		return m, tea.Quit
	}

	return m, nil
}

// updateKey routes key presses by the current phase and focus.
func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Reboot):
		return m, m.powerCmd(power.Reboot)

	case key.Matches(msg, m.keymap.Poweroff):
		return m, m.powerCmd(power.Poweroff)
	}

	if m.failed {
		// Only the bindings above work once the connection is gone.
		return m, nil
	}

	status := m.ctrl.Status()

	switch {
	case key.Matches(msg, m.keymap.Escape):
		return m, m.cancelCmd()

	case key.Matches(msg, m.keymap.Enter):
		return m.submit(status)

	case key.Matches(msg, m.keymap.EditCommand) && status.Phase == controller.PhaseNotCreated:
		m.useCommand = !m.useCommand
		if m.useCommand {
			m.focused = focusCommand
		} else {
			m.focused = focusSession
			m.applySession()
		}
		m.syncFocus()
		return m, nil

	case key.Matches(msg, m.keymap.NextField) && status.Phase == controller.PhaseNotCreated:
		m.focused = m.nextFocus(m.focused, +1)
		m.syncFocus()
		return m, nil

	case key.Matches(msg, m.keymap.PrevField) && status.Phase == controller.PhaseNotCreated:
		m.focused = m.nextFocus(m.focused, -1)
		m.syncFocus()
		return m, nil
	}

	// Field-local editing.
	var cmd tea.Cmd
	switch m.focused {
	case focusUser:
		before := m.userSel.Selected().Value
		m.userSel, cmd = m.userSel.Update(msg)
		if m.userSel.Selected().Value != before {
			m.applyUser()
		}
	case focusSession:
		before := m.sessSel.Selected().Value
		m.sessSel, cmd = m.sessSel.Update(msg)
		if m.sessSel.Selected().Value != before {
			m.applySession()
		}
	case focusCommand:
		m.cmdInput, cmd = m.cmdInput.Update(msg)
		m.applyCommand()
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// submit acts on Enter for the current phase.
func (m Model) submit(status controller.Status) (tea.Model, tea.Cmd) {
	switch status.Phase {
	case controller.PhaseNotCreated, controller.PhaseStartable, controller.PhaseAuthInformative:
		return m, m.advanceCmd(secret.New(""))

	case controller.PhaseAuthQuestion:
		cred := secret.New(m.input.Value())
		m.input.Reset()
		return m, m.advanceCmd(cred)

	case controller.PhaseBusy:
		// An exchange is in flight; ignore the key instead of surfacing
		// ErrBusy for mashed Enter presses.
		return m, nil
	}
	return m, nil
}

// updateNotice folds a controller event into the notice area.
func (m Model) updateNotice(msg pubsub.Event[controller.Notice]) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.noticeListener.Listen()}

	switch msg.Type {
	case pubsub.StartedEvent:
		m.rememberSelection()
		m.Close()
		cmds = append(cmds, func() tea.Msg { return startFinishedMsg{} })
	case pubsub.NoticeEvent:
		m.pushNotice(msg.Payload)
	}

	return m, tea.Batch(cmds...)
}

// updateAdvanceDone reconciles the form with the phase reached by Advance.
func (m Model) updateAdvanceDone(err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.failed = true
		m.pushNotice(controller.Notice{Severity: controller.SeverityError, Text: err.Error()})
		return m, nil
	}

	status := m.ctrl.Status()
	switch status.Phase {
	case controller.PhaseAuthQuestion:
		m.focused = focusInput
		m.input.Reset()
		if status.Secret {
			m.input.EchoMode = textinput.EchoPassword
		} else {
			m.input.EchoMode = textinput.EchoNormal
		}
	case controller.PhaseAuthInformative:
		m.focused = focusInput
		m.input.Reset()
	case controller.PhaseNotCreated:
		m.focused = focusUser
	}
	m.syncFocus()
	return m, nil
}

// nextFocus cycles through the fields reachable before authentication.
func (m Model) nextFocus(f focus, dir int) focus {
	fields := []focus{focusUser, focusSession}
	if m.useCommand {
		fields = []focus{focusUser, focusCommand}
	}
	for i, field := range fields {
		if field == f {
			return fields[(i+dir+len(fields))%len(fields)]
		}
	}
	return fields[0]
}

// syncFocus propagates m.focused into the field components.
func (m *Model) syncFocus() {
	m.userSel = m.userSel.Blur()
	m.sessSel = m.sessSel.Blur()
	m.cmdInput.Blur()
	m.input.Blur()

	switch m.focused {
	case focusUser:
		m.userSel = m.userSel.Focus()
	case focusSession:
		m.sessSel = m.sessSel.Focus()
	case focusCommand:
		m.cmdInput.Focus()
	case focusInput:
		m.input.Focus()
	}
}

// applyUser pushes the selected user to the controller and restores that
// user's remembered session.
func (m *Model) applyUser() {
	username := m.userSel.Selected().Value
	if err := m.ctrl.ChangeUser(username); err != nil {
		m.pushNotice(controller.Notice{Severity: controller.SeverityWarning, Text: err.Error()})
		return
	}

	if sel, ok := m.cache.Lookup(username); ok {
		switch sel.Kind {
		case cache.KindDesktopEntry:
			m.useCommand = false
			m.sessSel = m.sessSel.SelectValue(sel.Value)
		case cache.KindCommand:
			m.useCommand = true
			m.cmdInput.SetValue(sel.Value)
		}
	} else if len(m.sessions) == 0 {
		// Nothing installed to pick from; offer the login shell instead.
		m.useCommand = true
		m.cmdInput.SetValue(m.shellFor(username))
	}

	if m.useCommand {
		m.applyCommand()
	} else {
		m.applySession()
	}
}

func (m *Model) shellFor(username string) string {
	for _, u := range m.users {
		if u.Name == username {
			return u.Shell
		}
	}
	return "/bin/sh"
}

// applySession pushes the selected desktop entry's command to the controller.
func (m *Model) applySession() {
	name := m.sessSel.Selected().Value
	for _, s := range m.sessions {
		if s.Name == name {
			m.ctrl.SetCommand(s.Cmd, m.cfg.EnvList())
			return
		}
	}
	m.ctrl.SetCommand(nil, m.cfg.EnvList())
}

// applyCommand pushes the hand-edited command line to the controller.
// An unparseable line maps to an empty command, which the controller
// refuses to start.
func (m *Model) applyCommand() {
	words, err := shlex.Split(m.cmdInput.Value())
	if err != nil {
		log.Debug(log.CatUI, "unparseable session command", "error", err)
		words = nil
	}
	m.ctrl.SetCommand(words, m.cfg.EnvList())
}

// rememberSelection records the successful selection in the cache.
func (m *Model) rememberSelection() {
	sel := cache.Selection{Kind: cache.KindDesktopEntry, Value: m.sessSel.Selected().Value}
	if m.useCommand {
		sel = cache.Selection{Kind: cache.KindCommand, Value: m.cmdInput.Value()}
	}
	m.cache.Remember(m.userSel.Selected().Value, sel)
	if err := m.cache.Save(m.cachePath); err != nil {
		log.Warn(log.CatCache, "saving selection cache", "error", err)
	}
}

// pushNotice appends a notice, dropping the oldest past the display limit.
func (m *Model) pushNotice(n controller.Notice) {
	m.notices = append(m.notices, n)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// advanceCmd runs one controller step off the update loop. The credential
// buffer is wiped as soon as the exchange finishes.
func (m Model) advanceCmd(cred *secret.String) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		defer cred.Destroy()
		err := ctrl.Advance(ctx, cred.Reveal())
		return advanceDoneMsg{err: err}
	}
}

// cancelCmd aborts the current attempt.
func (m Model) cancelCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return cancelDoneMsg{err: ctrl.Cancel(ctx)}
	}
}

// powerCmd triggers a reboot or poweroff.
func (m Model) powerCmd(action power.Action) tea.Cmd {
	if m.demo {
		return func() tea.Msg {
			return powerDoneMsg{action: action, err: fmt.Errorf("disabled in demo mode")}
		}
	}

	fallback := m.cfg.Commands.Reboot
	if action == power.Poweroff {
		fallback = m.cfg.Commands.Poweroff
	}
	ctx := m.ctx
	return func() tea.Msg {
		return powerDoneMsg{action: action, err: power.Do(ctx, action, fallback)}
	}
}

// reloadSessionsCmd re-scans the session directories.
func (m Model) reloadSessionsCmd() tea.Cmd {
	loader, ctx := m.loader, m.ctx
	return func() tea.Msg {
		loader.Flush(ctx)
		return sessionsLoadedMsg{sessions: loader.Load(ctx)}
	}
}

// userOptions converts users to selector options. The full name is shown,
// the login name is the value.
func userOptions(users []sysutil.User) []selector.Option {
	opts := make([]selector.Option, 0, len(users))
	for _, u := range users {
		label := u.Name
		if u.FullName != "" {
			label = fmt.Sprintf("%s (%s)", u.FullName, u.Name)
		}
		opts = append(opts, selector.Option{Label: label, Value: u.Name})
	}
	return opts
}

// sessionOptions converts sessions to selector options.
func sessionOptions(sessions []sysutil.Session) []selector.Option {
	opts := make([]selector.Option, 0, len(sessions))
	for _, s := range sessions {
		opts = append(opts, selector.Option{Label: s.Name, Value: s.Name})
	}
	return opts
}
