package greetd_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/greeterm/internal/greetd"
	"github.com/zjrosen/greeterm/internal/greetd/fake"
)

func TestConn_RoundtripAgainstDaemon(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	daemon := &fake.Daemon{Password: "hunter2"}
	go func() {
		defer server.Close()
		_ = daemon.ServeConn(server)
	}()

	conn := greetd.NewConn(client)
	ctx := context.Background()

	resp, err := conn.Roundtrip(ctx, greetd.CreateSessionRequest{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, greetd.TypeAuthMessage, resp.Type)
	require.Equal(t, greetd.AuthSecret, resp.AuthMessageType)

	cred := "hunter2"
	resp, err = conn.Roundtrip(ctx, greetd.PostAuthMessageResponseRequest{Response: &cred})
	require.NoError(t, err)
	require.Equal(t, greetd.TypeSuccess, resp.Type)

	resp, err = conn.Roundtrip(ctx, greetd.StartSessionRequest{Cmd: []string{"sway"}})
	require.NoError(t, err)
	require.Equal(t, greetd.TypeSuccess, resp.Type)

	started, cmd := daemon.Started()
	require.True(t, started)
	require.Equal(t, []string{"sway"}, cmd)
	require.Equal(t, "alice", daemon.Username())
}

func TestConn_CancelledContext(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := greetd.NewConn(client)
	_, err := conn.Roundtrip(ctx, greetd.CancelSessionRequest{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDial_MissingSocket(t *testing.T) {
	_, err := greetd.Dial("/nonexistent/greetd.sock")
	require.Error(t, err)
}
