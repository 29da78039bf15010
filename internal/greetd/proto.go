// Package greetd implements the client side of the greetd IPC protocol:
// the length-framed JSON wire codec, the connection transport, and the
// typestate session machine that the controller drives.
//
// Every message on the wire is a JSON document prefixed by a 4-byte
// big-endian payload length. Requests carry a "type" discriminator field;
// so do responses.
package greetd

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameSize bounds a single protocol message. Anything larger is treated
// as a framing error and kills the connection.
const maxFrameSize = 1 << 20

// RequestType discriminates the request messages.
type RequestType string

const (
	TypeCreateSession           RequestType = "create_session"
	TypePostAuthMessageResponse RequestType = "post_auth_message_response"
	TypeStartSession            RequestType = "start_session"
	TypeCancelSession           RequestType = "cancel_session"
)

// Request is one of the four greetd request messages.
type Request interface {
	requestType() RequestType
}

// CreateSessionRequest begins a login attempt for a user.
type CreateSessionRequest struct {
	Username string `json:"username"`
}

// PostAuthMessageResponseRequest answers an auth prompt. Response is nil for
// informative prompts that only need an acknowledgement; on the wire that is
// an explicit "response": null.
type PostAuthMessageResponseRequest struct {
	Response *string `json:"response"`
}

// StartSessionRequest launches the authenticated session.
type StartSessionRequest struct {
	Cmd []string `json:"cmd"`
	Env []string `json:"env"`
}

// CancelSessionRequest abandons the current session attempt.
type CancelSessionRequest struct{}

func (CreateSessionRequest) requestType() RequestType           { return TypeCreateSession }
func (PostAuthMessageResponseRequest) requestType() RequestType { return TypePostAuthMessageResponse }
func (StartSessionRequest) requestType() RequestType            { return TypeStartSession }
func (CancelSessionRequest) requestType() RequestType           { return TypeCancelSession }

// ResponseType discriminates the response messages.
type ResponseType string

const (
	TypeSuccess     ResponseType = "success"
	TypeError       ResponseType = "error"
	TypeAuthMessage ResponseType = "auth_message"
)

// ErrorKind is the daemon's error taxonomy.
type ErrorKind string

const (
	ErrorKindError ErrorKind = "error"
	ErrorKindAuth  ErrorKind = "auth_error"
)

// AuthMessageKind classifies an auth prompt. Visible and secret prompts
// expect a credential; info and error prompts only expect acknowledgement.
type AuthMessageKind string

const (
	AuthVisible AuthMessageKind = "visible"
	AuthSecret  AuthMessageKind = "secret"
	AuthInfo    AuthMessageKind = "info"
	AuthError   AuthMessageKind = "error"
)

// Response is any of the three greetd response messages. Type selects which
// of the remaining fields are meaningful.
type Response struct {
	Type ResponseType `json:"type"`

	// Set when Type == TypeError.
	ErrorType   ErrorKind `json:"error_type,omitempty"`
	Description string    `json:"description,omitempty"`

	// Set when Type == TypeAuthMessage.
	AuthMessageType AuthMessageKind `json:"auth_message_type,omitempty"`
	AuthMessage     string          `json:"auth_message,omitempty"`
}

// requestEnvelope is the wire form: the payload fields flattened next to the
// type discriminator.
type requestEnvelope struct {
	Type     RequestType `json:"type"`
	Username string      `json:"username,omitempty"`
	Response *string     `json:"response,omitempty"`
	Cmd      []string    `json:"cmd,omitempty"`
	Env      []string    `json:"env,omitempty"`

	// hasResponse forces "response" to be emitted even when nil.
	hasResponse bool
}

func (e requestEnvelope) MarshalJSON() ([]byte, error) {
	if e.hasResponse {
		return json.Marshal(struct {
			Type     RequestType `json:"type"`
			Response *string     `json:"response"`
		}{e.Type, e.Response})
	}
	type plain requestEnvelope
	return json.Marshal(plain(e))
}

// WriteRequest frames and writes a single request.
func WriteRequest(w io.Writer, req Request) error {
	env := requestEnvelope{Type: req.requestType()}
	switch r := req.(type) {
	case CreateSessionRequest:
		env.Username = r.Username
	case PostAuthMessageResponseRequest:
		env.Response = r.Response
		env.hasResponse = true
	case StartSessionRequest:
		env.Cmd = r.Cmd
		env.Env = r.Env
	case CancelSessionRequest:
	default:
		return fmt.Errorf("unknown request type %T", req)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", req.requestType(), err)
	}
	return writeFrame(w, payload)
}

// ReadRequest reads and decodes a single request. Used by the fake daemon
// and by tests; a real client only writes requests.
func ReadRequest(r io.Reader) (Request, error) {
	payload, err := readFrame(r)
	if err != nil {
		return nil, err
	}

	var env struct {
		Type     RequestType `json:"type"`
		Username string      `json:"username"`
		Response *string     `json:"response"`
		Cmd      []string    `json:"cmd"`
		Env      []string    `json:"env"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}

	switch env.Type {
	case TypeCreateSession:
		return CreateSessionRequest{Username: env.Username}, nil
	case TypePostAuthMessageResponse:
		return PostAuthMessageResponseRequest{Response: env.Response}, nil
	case TypeStartSession:
		return StartSessionRequest{Cmd: env.Cmd, Env: env.Env}, nil
	case TypeCancelSession:
		return CancelSessionRequest{}, nil
	default:
		return nil, fmt.Errorf("decoding request: unknown type %q", env.Type)
	}
}

// WriteResponse frames and writes a single response. The client never sends
// responses; this is the daemon half of the codec.
func WriteResponse(w io.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding %s response: %w", resp.Type, err)
	}
	return writeFrame(w, payload)
}

// ReadResponse reads and decodes a single response.
func ReadResponse(r io.Reader) (Response, error) {
	payload, err := readFrame(r)
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Response{}, fmt.Errorf("decoding response: %w", err)
	}
	switch resp.Type {
	case TypeSuccess, TypeError, TypeAuthMessage:
		return resp, nil
	default:
		return Response{}, fmt.Errorf("decoding response: unknown type %q", resp.Type)
	}
}

func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return payload, nil
}
