package fake

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/zjrosen/greeterm/internal/greetd"
	"github.com/zjrosen/greeterm/internal/log"
)

// Daemon mimics greetd's session handling: one session attempt at a time,
// password authentication, and launch bookkeeping. The zero value accepts
// any non-empty password; set Password to require a specific one.
type Daemon struct {
	// Password is the accepted credential. Empty means any non-empty
	// credential authenticates.
	Password string

	// Prompt is the text of the secret question. Defaults to "Password:".
	Prompt string

	// Greeting, when set, is delivered as an informative prompt before the
	// password question.
	Greeting string

	mu       sync.Mutex
	username string
	created  bool
	greeted  bool
	authed   bool
	started  bool
	startCmd []string
	startEnv []string
}

func (d *Daemon) prompt() string {
	if d.Prompt != "" {
		return d.Prompt
	}
	return "Password:"
}

// Handle applies one request to the daemon state and produces the response
// greetd would give.
func (d *Daemon) Handle(req greetd.Request) greetd.Response {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch r := req.(type) {
	case greetd.CreateSessionRequest:
		if d.created {
			return Error(greetd.ErrorKindError, "a session is already being configured")
		}
		if r.Username == "" {
			return Error(greetd.ErrorKindError, "no username supplied")
		}
		d.username = r.Username
		d.created = true
		d.authed = false
		d.greeted = false
		if d.Greeting != "" {
			d.greeted = true
			return AuthMessage(greetd.AuthInfo, d.Greeting)
		}
		return AuthMessage(greetd.AuthSecret, d.prompt())

	case greetd.PostAuthMessageResponseRequest:
		if !d.created {
			return Error(greetd.ErrorKindError, "no session under configuration")
		}
		if d.authed {
			return Error(greetd.ErrorKindError, "session is already authenticated")
		}
		if d.Greeting != "" && d.greeted {
			// The greeting only wanted an acknowledgement.
			d.greeted = false
			return AuthMessage(greetd.AuthSecret, d.prompt())
		}
		if r.Response == nil {
			return Error(greetd.ErrorKindAuth, "a credential is required")
		}
		if *r.Response == "" || (d.Password != "" && *r.Response != d.Password) {
			return Error(greetd.ErrorKindAuth, "Incorrect password")
		}
		d.authed = true
		return Success()

	case greetd.StartSessionRequest:
		if !d.created || !d.authed {
			return Error(greetd.ErrorKindError, "session is not ready to be started")
		}
		if d.started {
			return Error(greetd.ErrorKindError, "session already started")
		}
		if len(r.Cmd) == 0 {
			return Error(greetd.ErrorKindError, "no command specified")
		}
		d.started = true
		d.startCmd = r.Cmd
		d.startEnv = r.Env
		return Success()

	case greetd.CancelSessionRequest:
		// Cancelling with no session is a no-op, matching greetd.
		d.created = false
		d.authed = false
		d.greeted = false
		d.username = ""
		return Success()

	default:
		return Error(greetd.ErrorKindError, "unknown request")
	}
}

// Started reports whether a session launch was accepted and with what
// command.
func (d *Daemon) Started() (bool, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started, d.startCmd
}

// Username returns the user of the current attempt.
func (d *Daemon) Username() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.username
}

// ServeConn answers frames on a single connection until it closes.
func (d *Daemon) ServeConn(rw io.ReadWriter) error {
	for {
		req, err := greetd.ReadRequest(rw)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if err := greetd.WriteResponse(rw, d.Handle(req)); err != nil {
			return err
		}
	}
}

// Serve accepts connections until the listener closes. Each connection gets
// the shared daemon state, like a real greetd.
func (d *Daemon) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go func() {
			defer conn.Close()
			if err := d.ServeConn(conn); err != nil {
				log.ErrorErr(log.CatIPC, "fake daemon connection failed", err)
			}
		}()
	}
}

// Loopback is an in-process greetd.Transport backed by a Daemon, used by
// demo mode. No sockets, no goroutines.
type Loopback struct {
	Daemon *Daemon
}

// Roundtrip hands the request straight to the daemon logic.
func (l *Loopback) Roundtrip(ctx context.Context, req greetd.Request) (greetd.Response, error) {
	if err := ctx.Err(); err != nil {
		return greetd.Response{}, err
	}
	return l.Daemon.Handle(req), nil
}
