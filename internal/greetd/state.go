package greetd

import (
	"context"
	"fmt"

	"github.com/zjrosen/greeterm/internal/log"
)

// The session machine models the legal protocol sequence as one type per
// state, with operations defined only on the states they are valid in:
//
//	NotCreated      --CreateSession--> Startable | AuthQuestion | AuthInformative
//	AuthQuestion    --Respond--------> Startable | AuthQuestion | AuthInformative
//	AuthInformative --Acknowledge----> Startable | AuthQuestion | AuthInformative
//	Startable       --Start----------> SessionStarted (terminal)
//	any live state  --Cancel---------> NotCreated
//
// Each operation consumes its receiver: after a successful transition (or a
// transport failure) the old value is spent, and further calls on it return
// ErrSessionConsumed without touching the connection. A daemon-reported
// error (*RequestError) leaves the receiver live so the operation can be
// retried or the session cancelled.

// session is the connection ownership token threaded through the states.
// Exactly one live state value refers to a given token at any time.
type session struct {
	t     Transport
	spent bool
}

// exchange performs one roundtrip, enforcing the consumed-state guard.
// A transport failure spends the token; a daemon error response does not.
func (s *session) exchange(ctx context.Context, req Request) (Response, error) {
	if s.spent {
		return Response{}, ErrSessionConsumed
	}
	resp, err := s.t.Roundtrip(ctx, req)
	if err != nil {
		s.spent = true
		return Response{}, err
	}
	return resp, nil
}

// handoff spends this token and mints the successor's.
func (s *session) handoff() session {
	s.spent = true
	return session{t: s.t}
}

// NotCreated is a connection with no session attempt on it. It is the entry
// state of the machine and the state a successful cancel returns to.
type NotCreated struct {
	s session
}

// NewSession starts the machine on the given transport.
func NewSession(t Transport) *NotCreated {
	return &NotCreated{s: session{t: t}}
}

// Created is the successful outcome of an exchange that advances the auth
// conversation: exactly one field is non-nil.
type Created struct {
	Startable   *Startable
	Question    *AuthQuestion
	Informative *AuthInformative
}

// CreateSession begins a login attempt for username. The daemon's answer
// selects the successor state: immediate success yields Startable, a
// visible/secret prompt yields AuthQuestion, an info/error prompt yields
// AuthInformative.
func (n *NotCreated) CreateSession(ctx context.Context, username string) (Created, error) {
	log.Debug(log.CatIPC, "creating session", "username", username)
	resp, err := n.s.exchange(ctx, CreateSessionRequest{Username: username})
	if err != nil {
		return Created{}, err
	}
	return n.s.created(resp)
}

// Cancel sends cancel_session. greetd treats cancelling with no session as a
// no-op, so this is legal here; the controller normally short-circuits it.
func (n *NotCreated) Cancel(ctx context.Context) (*NotCreated, error) {
	return cancel(ctx, &n.s)
}

// AuthQuestion is a prompt that expects a credential, visible or secret.
type AuthQuestion struct {
	s       session
	kind    AuthMessageKind
	message string
}

// Message returns the prompt text. Cached; no IPC.
func (q *AuthQuestion) Message() string { return q.message }

// Secret reports whether the credential must be concealed while typed.
func (q *AuthQuestion) Secret() bool { return q.kind == AuthSecret }

// Respond sends the credential and reinterprets the daemon's answer exactly
// like CreateSession: the daemon may chain further prompts.
func (q *AuthQuestion) Respond(ctx context.Context, credential string) (Created, error) {
	resp, err := q.s.exchange(ctx, PostAuthMessageResponseRequest{Response: &credential})
	if err != nil {
		return Created{}, err
	}
	return q.s.created(resp)
}

// Cancel abandons the attempt. On failure the prompt stays live.
func (q *AuthQuestion) Cancel(ctx context.Context) (*NotCreated, error) {
	return cancel(ctx, &q.s)
}

// AuthInformative is an info or error message from the auth stack that only
// expects an empty acknowledgement.
type AuthInformative struct {
	s       session
	kind    AuthMessageKind
	message string
}

// Message returns the message text. Cached; no IPC.
func (i *AuthInformative) Message() string { return i.message }

// IsError reports whether the daemon flagged the message as an error rather
// than plain information.
func (i *AuthInformative) IsError() bool { return i.kind == AuthError }

// Acknowledge sends an empty response ("response": null) and reinterprets
// the daemon's answer exactly like CreateSession.
func (i *AuthInformative) Acknowledge(ctx context.Context) (Created, error) {
	resp, err := i.s.exchange(ctx, PostAuthMessageResponseRequest{Response: nil})
	if err != nil {
		return Created{}, err
	}
	return i.s.created(resp)
}

// Cancel abandons the attempt. On failure the message stays live.
func (i *AuthInformative) Cancel(ctx context.Context) (*NotCreated, error) {
	return cancel(ctx, &i.s)
}

// Startable is an authenticated session that can be launched.
type Startable struct {
	s session
}

// Start asks the daemon to execute cmd with the extra environment env. On
// success the session is running and the connection is done negotiating; on
// a daemon-reported error the receiver stays Startable; a failed launch
// does not invalidate the authentication.
func (st *Startable) Start(ctx context.Context, cmd, env []string) (*SessionStarted, error) {
	if len(cmd) == 0 || cmd[0] == "" {
		return nil, ErrEmptyCommand
	}

	log.Debug(log.CatIPC, "starting session", "cmd", fmt.Sprintf("%q", cmd))
	resp, err := st.s.exchange(ctx, StartSessionRequest{Cmd: cmd, Env: env})
	if err != nil {
		return nil, err
	}

	switch resp.Type {
	case TypeSuccess:
		st.s.spent = true
		return &SessionStarted{}, nil
	case TypeError:
		return nil, requestError(resp)
	default:
		st.s.spent = true
		return nil, fmt.Errorf("%w: during start_session", ErrUnexpectedAuthMessage)
	}
}

// Cancel abandons the authenticated session. On failure the receiver stays
// Startable.
func (st *Startable) Cancel(ctx context.Context) (*NotCreated, error) {
	return cancel(ctx, &st.s)
}

// SessionStarted is the terminal state: the daemon is executing the session
// and the connection is no longer usable for session operations.
type SessionStarted struct{}

// created interprets a response in the create/respond position and hands the
// token to the successor. Shared by CreateSession, Respond and Acknowledge.
func (s *session) created(resp Response) (Created, error) {
	switch resp.Type {
	case TypeSuccess:
		return Created{Startable: &Startable{s: s.handoff()}}, nil
	case TypeAuthMessage:
		switch resp.AuthMessageType {
		case AuthVisible, AuthSecret:
			return Created{Question: &AuthQuestion{
				s:       s.handoff(),
				kind:    resp.AuthMessageType,
				message: resp.AuthMessage,
			}}, nil
		case AuthInfo, AuthError:
			return Created{Informative: &AuthInformative{
				s:       s.handoff(),
				kind:    resp.AuthMessageType,
				message: resp.AuthMessage,
			}}, nil
		default:
			s.spent = true
			return Created{}, fmt.Errorf("unknown auth message type %q", resp.AuthMessageType)
		}
	case TypeError:
		return Created{}, requestError(resp)
	default:
		s.spent = true
		return Created{}, fmt.Errorf("unknown response type %q", resp.Type)
	}
}

func cancel(ctx context.Context, s *session) (*NotCreated, error) {
	log.Debug(log.CatIPC, "cancelling session")
	resp, err := s.exchange(ctx, CancelSessionRequest{})
	if err != nil {
		return nil, err
	}

	switch resp.Type {
	case TypeSuccess:
		return &NotCreated{s: s.handoff()}, nil
	case TypeError:
		return nil, requestError(resp)
	default:
		s.spent = true
		return nil, fmt.Errorf("%w: during cancel_session", ErrUnexpectedAuthMessage)
	}
}
