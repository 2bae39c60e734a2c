package napmsg

import "github.com/napbridge/napmsg-go/internal/rpc"

// Request methods implemented by the nap-msg backend.
const (
	// MethodInitialize performs the capability handshake.
	MethodInitialize = "initialize"
	// MethodMessageSend delivers plain text to one chat.
	MethodMessageSend = "message.send"
	// MethodSend is the generic send operation: segments to a group or
	// private chat, or a forward bundle.
	MethodSend = "send"
	// MethodWatchSubscribe starts the inbound message stream.
	MethodWatchSubscribe = "watch.subscribe"
	// MethodWatchUnsubscribe stops the inbound message stream.
	MethodWatchUnsubscribe = "watch.unsubscribe"
	// MethodChatsList lists the chats known to the backend.
	MethodChatsList = "chats.list"
)

// Notification methods observed on the inbound stream. MessageReceive comes
// from the backend; Stderr and Error are synthesized by this package.
const (
	// MethodMessageReceive carries one inbound chat message.
	MethodMessageReceive = "message.receive"
	// MethodStderr carries one line of backend diagnostic output, with
	// params {"line": "..."}.
	MethodStderr = rpc.MethodStderr
	// MethodError reports a backend output line that could not be decoded,
	// with params {"message": "...", "line": "..."}.
	MethodError = rpc.MethodError
)

// JSON-RPC error codes used by the backend. They surface on calls as
// RPCError values; match with errors.As and inspect the Code field.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32000
)

// CodeText returns a short description of a JSON-RPC error code.
// It returns the empty string if the code is unknown.
func CodeText(code int) string {
	switch code {
	case CodeParseError:
		return "parse error"
	case CodeInvalidRequest:
		return "invalid request"
	case CodeMethodNotFound:
		return "method not found"
	case CodeInvalidParams:
		return "invalid params"
	case CodeInternalError:
		return "internal error"
	default:
		return ""
	}
}
