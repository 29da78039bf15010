package greetd

import (
	"errors"
	"fmt"
)

// RequestErrorKind mirrors the daemon's error taxonomy.
type RequestErrorKind int

const (
	// RequestErrorProtocol is a general daemon failure, e.g. invalid session
	// parameters.
	RequestErrorProtocol RequestErrorKind = iota
	// RequestErrorAuth is an authentication failure, e.g. a wrong credential.
	RequestErrorAuth
)

func (k RequestErrorKind) String() string {
	if k == RequestErrorAuth {
		return "auth"
	}
	return "protocol"
}

// RequestError is a daemon-reported failure. It is non-fatal: the state the
// operation was invoked on remains valid, so the caller can retry the same
// operation or cancel.
type RequestError struct {
	Kind        RequestErrorKind
	Description string
}

func (e *RequestError) Error() string {
	if e.Kind == RequestErrorAuth {
		return fmt.Sprintf("greetd authentication error: %s", e.Description)
	}
	return fmt.Sprintf("greetd error: %s", e.Description)
}

// AsRequestError unwraps err into a RequestError, or nil when err is a
// transport failure (fatal to the connection).
func AsRequestError(err error) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	return nil
}

func requestError(resp Response) *RequestError {
	kind := RequestErrorProtocol
	if resp.ErrorType == ErrorKindAuth {
		kind = RequestErrorAuth
	}
	return &RequestError{Kind: kind, Description: resp.Description}
}

var (
	// ErrSessionConsumed reports a caller-contract violation: an operation
	// was invoked on a state value that has already transitioned. Nothing is
	// sent to the daemon.
	ErrSessionConsumed = errors.New("session state already consumed")

	// ErrEmptyCommand reports a start attempt with no executable command.
	// Nothing is sent to the daemon and the Startable state stays usable.
	ErrEmptyCommand = errors.New("session command is empty")

	// ErrUnexpectedAuthMessage means the daemon issued an auth prompt where
	// the protocol does not allow one (start or cancel). The connection can
	// no longer be trusted.
	ErrUnexpectedAuthMessage = errors.New("unexpected auth message from greetd")
)
