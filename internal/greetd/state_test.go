package greetd_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/greeterm/internal/greetd"
	"github.com/zjrosen/greeterm/internal/greetd/fake"
)

func TestCreateSession_SecretPrompt(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.AuthMessage(greetd.AuthSecret, "Password:")),
	)

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, created.Question)
	require.Nil(t, created.Startable)
	require.Nil(t, created.Informative)

	require.Equal(t, "Password:", created.Question.Message())
	require.True(t, created.Question.Secret())

	reqs := transport.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, greetd.CreateSessionRequest{Username: "alice"}, reqs[0])
}

func TestCreateSession_ImmediateSuccess(t *testing.T) {
	transport := fake.Script(fake.Respond(fake.Success()))

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "kiosk")
	require.NoError(t, err)
	require.NotNil(t, created.Startable)
}

func TestFullConversation_PasswordLogin(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.AuthMessage(greetd.AuthSecret, "Password:")),
		fake.Respond(fake.Success()),
		fake.Respond(fake.Success()),
	)

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "alice")
	require.NoError(t, err)

	created, err = created.Question.Respond(context.Background(), "hunter2")
	require.NoError(t, err)
	require.NotNil(t, created.Startable)

	started, err := created.Startable.Start(context.Background(), []string{"sway"}, []string{"A=b"})
	require.NoError(t, err)
	require.NotNil(t, started)

	reqs := transport.Requests()
	require.Len(t, reqs, 3)
	cred := "hunter2"
	require.Equal(t, greetd.PostAuthMessageResponseRequest{Response: &cred}, reqs[1])
	require.Equal(t, greetd.StartSessionRequest{Cmd: []string{"sway"}, Env: []string{"A=b"}}, reqs[2])
}

func TestAcknowledge_SendsNullResponse(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.AuthMessage(greetd.AuthInfo, "Touch the fingerprint sensor")),
		fake.Respond(fake.Success()),
	)

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, created.Informative)
	require.False(t, created.Informative.IsError())
	require.Equal(t, "Touch the fingerprint sensor", created.Informative.Message())

	created, err = created.Informative.Acknowledge(context.Background())
	require.NoError(t, err)
	require.NotNil(t, created.Startable)

	reqs := transport.Requests()
	require.Len(t, reqs, 2)
	ack, ok := reqs[1].(greetd.PostAuthMessageResponseRequest)
	require.True(t, ok)
	require.Nil(t, ack.Response)
}

func TestRespond_AuthErrorKeepsPromptLive(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.AuthMessage(greetd.AuthSecret, "Password:")),
		fake.Respond(fake.Error(greetd.ErrorKindAuth, "pam_authenticate failed")),
		fake.Respond(fake.Success()),
	)

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "alice")
	require.NoError(t, err)
	question := created.Question

	_, err = question.Respond(context.Background(), "wrong")
	reqErr := greetd.AsRequestError(err)
	require.NotNil(t, reqErr)
	require.Equal(t, greetd.RequestErrorAuth, reqErr.Kind)
	require.Equal(t, "pam_authenticate failed", reqErr.Description)

	// The prompt survives a daemon-reported failure; the retry goes out on
	// the same connection.
	created, err = question.Respond(context.Background(), "right")
	require.NoError(t, err)
	require.NotNil(t, created.Startable)
}

func TestCreateSession_ProtocolError(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.Error(greetd.ErrorKindError, "no such user")),
	)

	entry := greetd.NewSession(transport)
	_, err := entry.CreateSession(context.Background(), "ghost")
	reqErr := greetd.AsRequestError(err)
	require.NotNil(t, reqErr)
	require.Equal(t, greetd.RequestErrorProtocol, reqErr.Kind)
	require.Contains(t, err.Error(), "no such user")
	require.NotContains(t, err.Error(), "authentication")
}

func TestTransportError_ConsumesState(t *testing.T) {
	transport := fake.Script(
		fake.Fail(errors.New("connection reset")),
	)

	entry := greetd.NewSession(transport)
	_, err := entry.CreateSession(context.Background(), "alice")
	require.Error(t, err)
	require.Nil(t, greetd.AsRequestError(err))

	// The connection is gone; later calls fail locally without touching it.
	_, err = entry.CreateSession(context.Background(), "alice")
	require.ErrorIs(t, err, greetd.ErrSessionConsumed)
	require.Len(t, transport.Requests(), 1)
}

func TestConsumedState_RejectsSecondTransition(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.AuthMessage(greetd.AuthSecret, "Password:")),
		fake.Respond(fake.Success()),
	)

	entry := greetd.NewSession(transport)
	created, err := entry.CreateSession(context.Background(), "alice")
	require.NoError(t, err)

	_, err = created.Question.Respond(context.Background(), "hunter2")
	require.NoError(t, err)

	// Both the origin state and the already-consumed prompt are spent.
	_, err = entry.CreateSession(context.Background(), "alice")
	require.ErrorIs(t, err, greetd.ErrSessionConsumed)
	_, err = created.Question.Respond(context.Background(), "again")
	require.ErrorIs(t, err, greetd.ErrSessionConsumed)
	require.Len(t, transport.Requests(), 2)
}

func TestCancel_ReturnsToNotCreated(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.AuthMessage(greetd.AuthSecret, "Password:")),
		fake.Respond(fake.Success()), // cancel
		fake.Respond(fake.Success()), // second cancel, legal from NotCreated
	)

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "alice")
	require.NoError(t, err)

	notCreated, err := created.Question.Cancel(context.Background())
	require.NoError(t, err)
	require.NotNil(t, notCreated)

	// greetd treats cancel with no session as a no-op, so cancelling again
	// is legal.
	notCreated, err = notCreated.Cancel(context.Background())
	require.NoError(t, err)
	require.NotNil(t, notCreated)

	reqs := transport.Requests()
	require.Equal(t, greetd.CancelSessionRequest{}, reqs[1])
	require.Equal(t, greetd.CancelSessionRequest{}, reqs[2])
}

func TestStart_EmptyCommandFailsLocally(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.Success()),
		fake.Respond(fake.Success()),
	)

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "alice")
	require.NoError(t, err)

	_, err = created.Startable.Start(context.Background(), nil, nil)
	require.ErrorIs(t, err, greetd.ErrEmptyCommand)
	_, err = created.Startable.Start(context.Background(), []string{""}, nil)
	require.ErrorIs(t, err, greetd.ErrEmptyCommand)

	// Nothing went to the daemon and the state is still usable.
	require.Len(t, transport.Requests(), 1)
	started, err := created.Startable.Start(context.Background(), []string{"sway"}, nil)
	require.NoError(t, err)
	require.NotNil(t, started)
}

func TestStart_DaemonErrorKeepsStartable(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.Success()),
		fake.Respond(fake.Error(greetd.ErrorKindError, "exec failed")),
		fake.Respond(fake.Success()),
	)

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "alice")
	require.NoError(t, err)

	_, err = created.Startable.Start(context.Background(), []string{"no-such-compositor"}, nil)
	require.NotNil(t, greetd.AsRequestError(err))

	started, err := created.Startable.Start(context.Background(), []string{"sway"}, nil)
	require.NoError(t, err)
	require.NotNil(t, started)
}

func TestStart_AuthMessageIsFatal(t *testing.T) {
	transport := fake.Script(
		fake.Respond(fake.Success()),
		fake.Respond(fake.AuthMessage(greetd.AuthSecret, "Password:")),
	)

	created, err := greetd.NewSession(transport).CreateSession(context.Background(), "alice")
	require.NoError(t, err)

	_, err = created.Startable.Start(context.Background(), []string{"sway"}, nil)
	require.ErrorIs(t, err, greetd.ErrUnexpectedAuthMessage)

	_, err = created.Startable.Start(context.Background(), []string{"sway"}, nil)
	require.ErrorIs(t, err, greetd.ErrSessionConsumed)
}

// TestDaemonError_PreservesCategory checks that any daemon error response
// surfaces with its category and description intact, and never consumes the
// state it was reported to.
func TestDaemonError_PreservesCategory(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		kind := greetd.ErrorKindError
		wantKind := greetd.RequestErrorProtocol
		if rapid.Bool().Draw(r, "auth") {
			kind = greetd.ErrorKindAuth
			wantKind = greetd.RequestErrorAuth
		}
		desc := rapid.StringMatching(`[ -~]{0,40}`).Draw(r, "desc")

		transport := fake.Script(
			fake.Respond(fake.Error(kind, desc)),
			fake.Respond(fake.Success()),
		)

		entry := greetd.NewSession(transport)
		_, err := entry.CreateSession(context.Background(), "alice")
		reqErr := greetd.AsRequestError(err)
		if reqErr == nil {
			r.Fatalf("expected request error, got %v", err)
		}
		if reqErr.Kind != wantKind || reqErr.Description != desc {
			r.Fatalf("got kind=%v desc=%q, want kind=%v desc=%q", reqErr.Kind, reqErr.Description, wantKind, desc)
		}

		// Still live: the retry reaches the daemon.
		if _, err := entry.CreateSession(context.Background(), "alice"); err != nil {
			r.Fatalf("retry after daemon error: %v", err)
		}
		if got := len(transport.Requests()); got != 2 {
			r.Fatalf("expected 2 requests, got %d", got)
		}
	})
}
