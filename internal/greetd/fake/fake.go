// Package fake provides stand-ins for the greetd daemon: a scripted
// transport for unit tests, and a stateful daemon that can run in-process
// (demo mode) or serve a real Unix socket (the fakegreetd subcommand).
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/zjrosen/greeterm/internal/greetd"
)

// Step is one canned exchange for ScriptTransport: either a response or a
// transport error.
type Step struct {
	Response greetd.Response
	Err      error
}

// ScriptTransport replays a fixed sequence of responses and records every
// request it sees. It implements greetd.Transport.
type ScriptTransport struct {
	mu       sync.Mutex
	steps    []Step
	requests []greetd.Request
}

// Script builds a transport from the given steps.
func Script(steps ...Step) *ScriptTransport {
	return &ScriptTransport{steps: steps}
}

// Respond is a convenience constructor for a successful step.
func Respond(resp greetd.Response) Step { return Step{Response: resp} }

// Fail is a convenience constructor for a transport-error step.
func Fail(err error) Step { return Step{Err: err} }

// Success is the plain success response.
func Success() greetd.Response { return greetd.Response{Type: greetd.TypeSuccess} }

// Error builds a daemon error response.
func Error(kind greetd.ErrorKind, description string) greetd.Response {
	return greetd.Response{Type: greetd.TypeError, ErrorType: kind, Description: description}
}

// AuthMessage builds an auth prompt response.
func AuthMessage(kind greetd.AuthMessageKind, message string) greetd.Response {
	return greetd.Response{Type: greetd.TypeAuthMessage, AuthMessageType: kind, AuthMessage: message}
}

// Roundtrip pops the next step. Running past the script is a test bug and
// reported as a transport error.
func (s *ScriptTransport) Roundtrip(_ context.Context, req greetd.Request) (greetd.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return greetd.Response{}, fmt.Errorf("script exhausted after %d requests", len(s.requests))
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.Err != nil {
		return greetd.Response{}, step.Err
	}
	return step.Response, nil
}

// Requests returns a copy of the requests seen so far.
func (s *ScriptTransport) Requests() []greetd.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]greetd.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Remaining returns how many scripted steps are left.
func (s *ScriptTransport) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}
