//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	napmsg "github.com/napbridge/napmsg-go"
)

// TestClient_Lifecycle walks a real subprocess through the full session:
// start, handshake, typed calls, stop.
func TestClient_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	execPath := writeBackend(t, responderScript)
	client := napmsg.NewClient()

	require.NoError(t, client.Start(ctx, napmsg.WithExecPath(execPath)))
	defer client.Stop()

	require.NotEmpty(t, client.SessionID())

	caps, err := client.Initialize(ctx)
	require.NoError(t, err)
	require.True(t, caps.Streaming)
	require.True(t, caps.Attachments)

	ack, err := client.SendText(ctx, "group:123456", "hello")
	require.NoError(t, err)
	require.JSONEq(t, `{"message_id":42}`, string(ack))

	chats, err := client.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	require.NoError(t, client.Stop())
}

// TestClient_Restart verifies a stopped client can be started again and gets
// a fresh backend process with a new session id.
func TestClient_Restart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	execPath := writeBackend(t, responderScript)
	client := napmsg.NewClient()

	require.NoError(t, client.Start(ctx, napmsg.WithExecPath(execPath)))

	firstSession := client.SessionID()

	_, err := client.Initialize(ctx)
	require.NoError(t, err)
	require.NoError(t, client.Stop())

	require.NoError(t, client.Start(ctx, napmsg.WithExecPath(execPath)))
	defer client.Stop()

	require.NotEqual(t, firstSession, client.SessionID())

	_, err = client.Initialize(ctx)
	require.NoError(t, err)
}

// TestClient_EndInputDrains checks the clean shutdown path: closing stdin
// lets the backend exit on its own and WaitClosed reports no error.
func TestClient_EndInputDrains(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	execPath := writeBackend(t, responderScript)
	client := napmsg.NewClient()

	require.NoError(t, client.Start(ctx, napmsg.WithExecPath(execPath)))
	defer client.Stop()

	_, err := client.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, client.EndInput())
	require.NoError(t, client.WaitClosed(ctx))
}

// TestClient_CrashSurfacesProcessError kills the backend mid-call and checks
// the exit code and stderr tail arrive on the waiter.
func TestClient_CrashSurfacesProcessError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	execPath := writeBackend(t, crashScript)
	client := napmsg.NewClient()

	require.NoError(t, client.Start(ctx, napmsg.WithExecPath(execPath)))
	defer client.Stop()

	_, err := client.Initialize(ctx)
	require.NoError(t, err)

	// The backend dies on this call; the pending request settles with an
	// error rather than hanging.
	_, err = client.SendText(ctx, "group:123456", "trigger crash")
	require.Error(t, err)

	err = client.WaitClosed(ctx)
	require.Error(t, err)

	procErr, ok := errors.AsType[*napmsg.ProcessError](err)
	require.True(t, ok, "expected ProcessError, got %v", err)
	require.Equal(t, 3, procErr.ExitCode)
	require.Contains(t, procErr.Stderr, "napcat connection lost")
}

// TestClient_MissingExec checks discovery failure for an explicit path.
func TestClient_MissingExec(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := napmsg.NewClient()

	err := client.Start(ctx, napmsg.WithExecPath("/nonexistent/nap-msg"))
	require.Error(t, err)

	_, ok := errors.AsType[*napmsg.ExecNotFoundError](err)
	require.True(t, ok, "expected ExecNotFoundError, got %v", err)
}

// TestClient_BackendEnvironment verifies the entrypoint marker and
// user-provided variables reach the child process.
func TestClient_BackendEnvironment(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	execPath := writeBackend(t, envScript)
	client := napmsg.NewClient()

	require.NoError(t, client.Start(ctx,
		napmsg.WithExecPath(execPath),
		napmsg.WithEnv(map[string]string{"NAP_TEST_VALUE": "plumbed"}),
	))
	defer client.Stop()

	streamCtx, streamCancel := context.WithTimeout(ctx, 10*time.Second)
	defer streamCancel()

	var reported struct {
		Entrypoint string `json:"entrypoint"`
		Custom     string `json:"custom"`
	}

	for n, err := range client.Notifications(streamCtx) {
		require.NoError(t, err)

		if n.Method != "env" {
			continue
		}

		require.NoError(t, json.Unmarshal(n.Params, &reported))

		break
	}

	require.Equal(t, "sdk-go", reported.Entrypoint)
	require.Equal(t, "plumbed", reported.Custom)
}
