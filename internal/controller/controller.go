// Package controller sequences the greetd state machine into the three
// workflows a front-end needs: advance (create, answer prompts, start),
// cancel, and change-user. It owns the single live state value and decides
// what happens on every error: daemon-reported errors are published as
// notices and the pre-error state is kept for another attempt, transport
// errors end the login attempt.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zjrosen/greeterm/internal/greetd"
	"github.com/zjrosen/greeterm/internal/log"
	"github.com/zjrosen/greeterm/internal/pubsub"
)

// Phase is the controller-visible state of the login attempt.
type Phase int

const (
	// PhaseNotCreated means no session attempt exists; the user can still be
	// switched.
	PhaseNotCreated Phase = iota
	// PhaseAuthQuestion means the daemon wants a credential.
	PhaseAuthQuestion
	// PhaseAuthInformative means the daemon delivered a message that only
	// needs acknowledgement.
	PhaseAuthInformative
	// PhaseStartable means authentication finished and the session can be
	// launched.
	PhaseStartable
	// PhaseBusy means an exchange is in flight. No operation is legal.
	PhaseBusy
	// PhaseStarted is terminal: the daemon accepted start_session.
	PhaseStarted
	// PhaseFailed is terminal: the transport broke and the attempt must be
	// abandoned.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotCreated:
		return "not-created"
	case PhaseAuthQuestion:
		return "auth-question"
	case PhaseAuthInformative:
		return "auth-informative"
	case PhaseStartable:
		return "startable"
	case PhaseBusy:
		return "busy"
	case PhaseStarted:
		return "started"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Severity classifies a notice for display.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// Notice is a user-facing notification published on the broker.
type Notice struct {
	Severity Severity
	Text     string
}

// Contract-violation errors. These indicate front-end bugs, are never sent
// to the daemon, and never change controller state.
var (
	ErrBusy       = errors.New("an exchange is already in flight")
	ErrUserLocked = errors.New("user cannot be changed while a session exists")
	ErrDone       = errors.New("login attempt already finished")
)

// Status is a snapshot of the controller for rendering.
type Status struct {
	Phase    Phase
	Username string
	// AttemptID tags every log line of one create-to-start conversation.
	AttemptID string

	// Prompt fields, valid in PhaseAuthQuestion and PhaseAuthInformative.
	Prompt      string
	Secret      bool
	PromptError bool
}

// Controller drives one greetd connection. All methods are safe for
// concurrent use; the protocol's single-outstanding-request rule is
// enforced by the Busy phase.
type Controller struct {
	mu sync.Mutex

	phase       Phase
	notCreated  *greetd.NotCreated
	question    *greetd.AuthQuestion
	informative *greetd.AuthInformative
	startable   *greetd.Startable

	username  string
	command   []string
	env       []string
	attemptID string

	events *pubsub.Broker[Notice]
}

// New builds a controller over the transport, starting at NotCreated.
func New(t greetd.Transport, username string) *Controller {
	return &Controller{
		phase:      PhaseNotCreated,
		notCreated: greetd.NewSession(t),
		username:   username,
		events:     pubsub.NewBroker[Notice](),
	}
}

// Events exposes the notice broker for the front-end to subscribe to.
func (c *Controller) Events() *pubsub.Broker[Notice] {
	return c.events
}

// Close shuts down the notice broker.
func (c *Controller) Close() {
	c.events.Close()
}

// Status returns a snapshot of the current phase.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{Phase: c.phase, Username: c.username, AttemptID: c.attemptID}
	switch c.phase {
	case PhaseAuthQuestion:
		s.Prompt = c.question.Message()
		s.Secret = c.question.Secret()
	case PhaseAuthInformative:
		s.Prompt = c.informative.Message()
		s.PromptError = c.informative.IsError()
	}
	return s
}

// SetCommand updates the command and environment used at session start.
// Has no effect on the protocol state.
func (c *Controller) SetCommand(cmd, env []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.command = cmd
	c.env = env
}

// ChangeUser sets the username for the next create_session. Legal only in
// PhaseNotCreated; anywhere else the caller must cancel first.
func (c *Controller) ChangeUser(username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseNotCreated {
		return fmt.Errorf("%w (phase %s)", ErrUserLocked, c.phase)
	}
	c.username = username
	return nil
}

// Advance performs the next step of the login conversation:
//
//   - PhaseNotCreated: create_session for the stored username
//   - PhaseAuthQuestion: respond with credential
//   - PhaseAuthInformative: acknowledge (credential is ignored)
//   - PhaseStartable: start_session with the stored command
//
// Whenever a step lands on Startable and a command is configured, the start
// follows immediately without another caller action. Daemon-reported errors
// are published as notices and retain the pre-error phase; the returned
// error is reserved for transport failures and contract violations.
func (c *Controller) Advance(ctx context.Context, credential string) error {
	c.mu.Lock()
	phase := c.phase
	switch phase {
	case PhaseBusy:
		c.mu.Unlock()
		return ErrBusy
	case PhaseStarted, PhaseFailed:
		c.mu.Unlock()
		return fmt.Errorf("%w (phase %s)", ErrDone, phase)
	}

	// Move the live state out and hold Busy while the exchange runs.
	notCreated, question, informative, startable := c.takeState()
	username := c.username
	c.mu.Unlock()

	var (
		created greetd.Created
		err     error
	)

	switch phase {
	case PhaseNotCreated:
		c.mu.Lock()
		c.attemptID = uuid.NewString()
		attempt := c.attemptID
		c.mu.Unlock()
		log.Info(log.CatCtrl, "creating session", "attempt", attempt, "username", username)
		created, err = notCreated.CreateSession(ctx, username)
		if err != nil {
			return c.settle(phase, notCreated, question, informative, startable, err)
		}
	case PhaseAuthQuestion:
		created, err = question.Respond(ctx, credential)
		if err != nil {
			return c.settle(phase, notCreated, question, informative, startable, err)
		}
	case PhaseAuthInformative:
		created, err = informative.Acknowledge(ctx)
		if err != nil {
			return c.settle(phase, notCreated, question, informative, startable, err)
		}
	case PhaseStartable:
		return c.autostart(ctx, startable)
	}

	// The exchange succeeded; adopt the successor state.
	if created.Startable != nil {
		return c.autostart(ctx, created.Startable)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adopt(created)
	return nil
}

// Cancel abandons the current session attempt. From PhaseNotCreated it is a
// local no-op; cancelling twice in a row is therefore always legal.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	phase := c.phase
	switch phase {
	case PhaseNotCreated:
		c.mu.Unlock()
		return nil
	case PhaseBusy:
		c.mu.Unlock()
		return ErrBusy
	case PhaseStarted, PhaseFailed:
		c.mu.Unlock()
		return fmt.Errorf("%w (phase %s)", ErrDone, phase)
	}
	_, question, informative, startable := c.takeState()
	c.mu.Unlock()

	var (
		next *greetd.NotCreated
		err  error
	)
	switch phase {
	case PhaseAuthQuestion:
		next, err = question.Cancel(ctx)
	case PhaseAuthInformative:
		next, err = informative.Cancel(ctx)
	case PhaseStartable:
		next, err = startable.Cancel(ctx)
	}
	if err != nil {
		return c.settle(phase, nil, question, informative, startable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	log.Info(log.CatCtrl, "session cancelled", "attempt", c.attemptID)
	c.phase = PhaseNotCreated
	c.notCreated = next
	c.attemptID = ""
	return nil
}

// autostart launches the session from Startable. With no configured command
// it reports a local error and stays Startable; the daemon is not contacted.
func (c *Controller) autostart(ctx context.Context, startable *greetd.Startable) error {
	if len(c.commandSnapshot()) == 0 {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.phase = PhaseStartable
		c.startable = startable
		c.notify(SeverityError, "Selected session cannot be executed because it is invalid")
		return nil
	}

	cmd, env := c.commandSnapshot(), c.envSnapshot()
	_, err := startable.Start(ctx, cmd, env)
	if err != nil {
		if errors.Is(err, greetd.ErrEmptyCommand) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.phase = PhaseStartable
			c.startable = startable
			c.notify(SeverityError, "Selected session cannot be executed because it is invalid")
			return nil
		}
		return c.settle(PhaseStartable, nil, nil, nil, startable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	log.Info(log.CatCtrl, "session started", "attempt", c.attemptID, "cmd", fmt.Sprintf("%q", cmd))
	c.phase = PhaseStarted
	c.events.Publish(pubsub.StartedEvent, Notice{Severity: SeverityInfo, Text: "Session started"})
	return nil
}

// settle restores state after a failed exchange. A RequestError keeps the
// pre-error phase and surfaces a notice; anything else is a transport
// failure that ends the attempt.
func (c *Controller) settle(
	phase Phase,
	notCreated *greetd.NotCreated,
	question *greetd.AuthQuestion,
	informative *greetd.AuthInformative,
	startable *greetd.Startable,
	err error,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if reqErr := greetd.AsRequestError(err); reqErr != nil {
		c.phase = phase
		c.notCreated = notCreated
		c.question = question
		c.informative = informative
		c.startable = startable

		log.Warn(log.CatCtrl, "daemon reported error", "attempt", c.attemptID,
			"kind", reqErr.Kind, "description", reqErr.Description)
		c.notify(SeverityError, reqErr.Description)
		return nil
	}

	log.ErrorErr(log.CatCtrl, "transport failed, abandoning attempt", err, "attempt", c.attemptID)
	c.phase = PhaseFailed
	c.notify(SeverityError, fmt.Sprintf("Connection to greetd failed: %v", err))
	return err
}

// takeState clears the state fields and returns them; the phase must be set
// by the caller afterwards. Callers hold the lock.
func (c *Controller) takeState() (*greetd.NotCreated, *greetd.AuthQuestion, *greetd.AuthInformative, *greetd.Startable) {
	c.phase = PhaseBusy
	n, q, i, st := c.notCreated, c.question, c.informative, c.startable
	c.notCreated, c.question, c.informative, c.startable = nil, nil, nil, nil
	return n, q, i, st
}

// adopt stores the successor state from a Created outcome. Callers hold the
// lock.
func (c *Controller) adopt(created greetd.Created) {
	switch {
	case created.Question != nil:
		c.phase = PhaseAuthQuestion
		c.question = created.Question
	case created.Informative != nil:
		c.phase = PhaseAuthInformative
		c.informative = created.Informative
	case created.Startable != nil:
		c.phase = PhaseStartable
		c.startable = created.Startable
	}
}

func (c *Controller) notify(severity Severity, text string) {
	c.events.Publish(pubsub.NoticeEvent, Notice{Severity: severity, Text: text})
}

func (c *Controller) commandSnapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command
}

func (c *Controller) envSnapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.env
}
