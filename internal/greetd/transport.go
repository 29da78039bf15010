package greetd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/zjrosen/greeterm/internal/log"
)

// SocketEnv is the environment variable greetd uses to hand its socket path
// to the greeter.
const SocketEnv = "GREETD_SOCK"

// Transport performs one request/response exchange with the daemon. The real
// connection and the fakes used by tests and demo mode both implement it.
//
// A Transport never retries: any returned error means the exchange failed
// and the connection must be considered unusable.
type Transport interface {
	Roundtrip(ctx context.Context, req Request) (Response, error)
}

// Conn is a Transport over an established duplex byte stream, normally the
// greetd Unix socket.
type Conn struct {
	rw io.ReadWriter
}

// NewConn wraps an already-connected stream. The connection's lifetime is
// owned by the caller; the protocol has no close operation.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw}
}

// Dial connects to the greetd socket at path. An empty path falls back to
// the GREETD_SOCK environment variable.
func Dial(path string) (*Conn, error) {
	if path == "" {
		path = os.Getenv(SocketEnv)
	}
	if path == "" {
		return nil, fmt.Errorf("no greetd socket: %s is not set", SocketEnv)
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to greetd socket %s: %w", path, err)
	}
	return NewConn(conn), nil
}

// Roundtrip writes one request and reads one response.
//
// Cancellation is checked before the request is sent; once sent, the
// exchange cannot be abandoned without poisoning the framing, so a caller
// that wants a timeout must race Roundtrip against a timer and discard the
// connection if the timer wins.
func (c *Conn) Roundtrip(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	log.Debug(log.CatIPC, "sending request", "type", req.requestType())
	if err := WriteRequest(c.rw, req); err != nil {
		return Response{}, err
	}
	resp, err := ReadResponse(c.rw)
	if err != nil {
		return Response{}, err
	}
	log.Debug(log.CatIPC, "received response", "type", resp.Type)
	return resp, nil
}
