//go:build integration

// Package integration exercises the full stack against scripted stand-ins
// for the nap-msg backend: real subprocesses spawned through the process
// transport, speaking line-delimited JSON-RPC over pipes. No NapCat endpoint
// or Python installation is needed.
package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// responderScript is a shell stand-in for nap-msg rpc mode. It answers the
// standard methods with canned results and pushes two message.receive
// notifications once a subscription is acknowledged.
const responderScript = `#!/bin/sh
echo "backend ready" >&2
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed 's/.*"id":\([0-9][0-9]*\).*/\1/')
  case "$line" in
  *'"method":"initialize"'*)
    printf '{"jsonrpc":"2.0","id":%s,"result":{"capabilities":{"streaming":true,"attachments":true}}}\n' "$id" ;;
  *'"method":"message.send"'*)
    printf '{"jsonrpc":"2.0","id":%s,"result":{"message_id":42}}\n' "$id" ;;
  *'"method":"send"'*)
    printf '{"jsonrpc":"2.0","id":%s,"result":{"message_id":43}}\n' "$id" ;;
  *'"method":"watch.subscribe"'*)
    printf '{"jsonrpc":"2.0","id":%s,"result":{"status":"subscribed"}}\n' "$id"
    printf '{"jsonrpc":"2.0","method":"message.receive","params":{"sender_id":"10001","chat_id":"123456","is_group":true,"text":"hello from group","message_id":"1"}}\n'
    printf '{"jsonrpc":"2.0","method":"message.receive","params":{"sender_id":"10002","chat_id":"10002","is_group":false,"text":"direct hello","message_id":"2"}}\n' ;;
  *'"method":"watch.unsubscribe"'*)
    printf '{"jsonrpc":"2.0","id":%s,"result":{"status":"unsubscribed"}}\n' "$id" ;;
  *'"method":"chats.list"'*)
    printf '{"jsonrpc":"2.0","id":%s,"result":[{"id":"123456","type":"group","name":"ops"}]}\n' "$id" ;;
  *)
    printf '{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}\n' "$id" ;;
  esac
done
`

// crashScript answers the handshake, then dies with a traceback-style stderr
// tail on the first send.
const crashScript = `#!/bin/sh
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed 's/.*"id":\([0-9][0-9]*\).*/\1/')
  case "$line" in
  *'"method":"initialize"'*)
    printf '{"jsonrpc":"2.0","id":%s,"result":{"capabilities":{"streaming":true,"attachments":true}}}\n' "$id" ;;
  *'"method":"message.send"'*)
    echo "fatal: napcat connection lost" >&2
    exit 3 ;;
  esac
done
`

// silentScript consumes requests and never answers, for timeout behavior.
const silentScript = `#!/bin/sh
while IFS= read -r line; do :; done
`

// garbageScript writes a plain-text line to stdout before behaving like a
// normal backend for the handshake.
const garbageScript = `#!/bin/sh
echo "WARNING: reconnecting to napcat"
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed 's/.*"id":\([0-9][0-9]*\).*/\1/')
  case "$line" in
  *'"method":"initialize"'*)
    printf '{"jsonrpc":"2.0","id":%s,"result":{"capabilities":{"streaming":true,"attachments":true}}}\n' "$id" ;;
  esac
done
`

// envScript reports selected environment variables as a notification, then
// idles until stdin closes.
const envScript = `#!/bin/sh
printf '{"jsonrpc":"2.0","method":"env","params":{"entrypoint":"%s","custom":"%s"}}\n' "$NAPMSG_ENTRYPOINT" "$NAP_TEST_VALUE"
while IFS= read -r line; do :; done
`

// exitScript terminates immediately with a nonzero status.
const exitScript = `#!/bin/sh
echo "boom" >&2
exit 2
`

// writeBackend installs a scripted backend in a temp dir and returns its path
// for WithExecPath.
func writeBackend(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nap-msg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}
