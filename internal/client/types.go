package client

import (
	"strings"

	"github.com/napbridge/napmsg-go/internal/message"
)

// Capabilities reports what the backend supports, as returned by the
// initialize handshake.
type Capabilities struct {
	Streaming   bool `json:"streaming"`
	Attachments bool `json:"attachments"`
}

// Channel values for SendRequest.
const (
	// ChannelGroup sends to a group chat.
	ChannelGroup = "group"
	// ChannelPrivate sends to a single user.
	ChannelPrivate = "private"
	// ChannelForward sends a bundle of forward nodes to a group.
	ChannelForward = "group_forward"
)

// SendRequest is the payload of the generic send operation.
//
// Channel selects the delivery mode; when empty the backend infers it from
// which of GroupID/UserID is set. Message carries ordinary segments; Nodes
// carries forward nodes and is only consulted for ChannelForward.
//
//nolint:tagliatelle // backend wire format uses snake_case
type SendRequest struct {
	Channel   string            `json:"channel,omitempty"`
	GroupID   string            `json:"group_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Message   []message.Segment `json:"message,omitempty"`
	Nodes     []message.Segment `json:"messages,omitempty"`
	NapcatURL string            `json:"napcat_url,omitempty"`
	Timeout   float64           `json:"timeout,omitempty"`
}

// SubscribeOptions filters the message.receive stream.
//
// NapcatURL overrides the endpoint for the watch connection; when empty the
// backend falls back to its NAPCAT_URL environment.
//
//nolint:tagliatelle // backend wire format uses snake_case
type SubscribeOptions struct {
	NapcatURL      string   `json:"napcat_url,omitempty"`
	FromGroup      string   `json:"from_group,omitempty"`
	FromUser       string   `json:"from_user,omitempty"`
	IgnorePrefixes []string `json:"ignore_prefixes,omitempty"`
}

// ParseTarget splits a chat target into the backend id and a group flag.
//
// Accepted forms: "group:<id>", "user:<id>", "private:<id>", or a bare id,
// which is treated as a private peer.
func ParseTarget(target string) (id string, isGroup bool) {
	switch {
	case strings.HasPrefix(target, "group:"):
		return strings.TrimPrefix(target, "group:"), true
	case strings.HasPrefix(target, "user:"):
		return strings.TrimPrefix(target, "user:"), false
	case strings.HasPrefix(target, "private:"):
		return strings.TrimPrefix(target, "private:"), false
	default:
		return target, false
	}
}

// FormatTarget renders the canonical target string for a chat id.
func FormatTarget(id string, isGroup bool) string {
	if isGroup {
		return "group:" + id
	}

	return "user:" + id
}
