package napmsg

import (
	"encoding/json"

	"github.com/napbridge/napmsg-go/internal/client"
	"github.com/napbridge/napmsg-go/internal/config"
	"github.com/napbridge/napmsg-go/internal/message"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options holds the full configuration for a bridge client. Most callers use
// the functional options (WithLogger, WithNapcatURL, ...) instead of
// constructing one directly.
type Options = config.Options

// DefaultExecName is the backend executable spawned when no explicit path is
// configured.
const DefaultExecName = config.DefaultExecName

// DefaultRequestTimeout is the fallback request timeout applied when neither
// the call nor the client configures one.
const DefaultRequestTimeout = config.DefaultRequestTimeout

// ===== Bridge Types =====

// Capabilities reports what the backend supports, as returned by Initialize.
type Capabilities = client.Capabilities

// SendRequest describes one generic send operation.
type SendRequest = client.SendRequest

// SubscribeOptions filters the inbound message stream.
type SubscribeOptions = client.SubscribeOptions

// Send channels accepted by SendRequest.Channel.
const (
	// ChannelGroup sends message segments to a group chat.
	ChannelGroup = client.ChannelGroup
	// ChannelPrivate sends message segments to a private chat.
	ChannelPrivate = client.ChannelPrivate
	// ChannelForward sends a batch of nodes as a group forward bundle.
	ChannelForward = client.ChannelForward
)

// ParseTarget splits a target of the form "group:123456" or "user:10001" into
// the bare id and a group flag. A target without a prefix is treated as a
// private chat.
func ParseTarget(target string) (id string, isGroup bool) {
	return client.ParseTarget(target)
}

// FormatTarget renders an id and group flag back into target form.
func FormatTarget(id string, isGroup bool) string {
	return client.FormatTarget(id, isGroup)
}

// ===== Message Segments =====

// Segment is one OneBot-style message segment. The concrete types below cover
// the segments the backend understands; anything else round-trips as a
// RawSegment.
type Segment = message.Segment

// Segment type identifiers returned by Segment.SegmentType.
const (
	SegmentTypeText  = message.SegmentTypeText
	SegmentTypeImage = message.SegmentTypeImage
	SegmentTypeFile  = message.SegmentTypeFile
	SegmentTypeVideo = message.SegmentTypeVideo
	SegmentTypeReply = message.SegmentTypeReply
	SegmentTypeNode  = message.SegmentTypeNode
)

// TextSegment is a plain text segment.
type TextSegment = message.TextSegment

// TextSegmentData is the payload of a TextSegment.
type TextSegmentData = message.TextSegmentData

// ImageSegment attaches an image by path, URL, or base64 data.
type ImageSegment = message.ImageSegment

// ImageSegmentData is the payload of an ImageSegment.
type ImageSegmentData = message.ImageSegmentData

// FileSegment attaches an arbitrary file.
type FileSegment = message.FileSegment

// FileSegmentData is the payload of a FileSegment.
type FileSegmentData = message.FileSegmentData

// VideoSegment attaches a video.
type VideoSegment = message.VideoSegment

// VideoSegmentData is the payload of a VideoSegment.
type VideoSegmentData = message.VideoSegmentData

// ReplySegment marks the message as a reply to an earlier message.
type ReplySegment = message.ReplySegment

// ReplySegmentData is the payload of a ReplySegment.
type ReplySegmentData = message.ReplySegmentData

// NodeSegment is one entry of a forward bundle: a sender identity plus the
// content shown under it.
type NodeSegment = message.NodeSegment

// NodeSegmentData is the payload of a NodeSegment.
type NodeSegmentData = message.NodeSegmentData

// RawSegment preserves a segment type this package does not model.
type RawSegment = message.RawSegment

// Text creates a plain text segment.
func Text(text string) *TextSegment {
	return message.Text(text)
}

// Image creates an image segment from a file path, URL, or base64 data URI.
func Image(file string) *ImageSegment {
	return message.Image(file)
}

// File creates a file attachment segment.
func File(file string) *FileSegment {
	return message.File(file)
}

// Video creates a video segment.
func Video(file string) *VideoSegment {
	return message.Video(file)
}

// Reply creates a reply marker referencing an earlier message id.
func Reply(messageID string) *ReplySegment {
	return message.Reply(messageID)
}

// Node creates one forward-bundle node attributed to the given sender.
func Node(userID, nickname string, content ...Segment) *NodeSegment {
	return message.Node(userID, nickname, content...)
}

// UnmarshalSegment decodes a single OneBot segment object into its concrete
// type, falling back to RawSegment for unknown types.
func UnmarshalSegment(data []byte) (Segment, error) {
	return message.UnmarshalSegment(data)
}

// UnmarshalSegments decodes a JSON array of OneBot segment objects.
func UnmarshalSegments(data []byte) ([]Segment, error) {
	return message.UnmarshalSegments(data)
}

// PlainText concatenates the text content of a segment list, skipping
// non-text segments.
func PlainText(segments []Segment) string {
	return message.PlainText(segments)
}

// ===== Forward Identity =====

// Environment variables controlling the sender identity stamped on forward
// bundle nodes.
const (
	// ForwardUserIDEnv overrides the user id shown on forward nodes.
	ForwardUserIDEnv = message.ForwardUserIDEnv
	// ForwardNicknameEnv overrides the nickname shown on forward nodes.
	ForwardNicknameEnv = message.ForwardNicknameEnv
	// DefaultForwardNickname is used when ForwardNicknameEnv is unset.
	DefaultForwardNickname = message.DefaultForwardNickname
)

// ForwardIdentity resolves the sender identity for forward nodes from the
// environment, falling back to the defaults.
func ForwardIdentity() (userID, nickname string) {
	return message.ForwardIdentity()
}

// ForwardNodes wraps each segment in its own forward node under the identity
// from ForwardIdentity, producing the node list for a ChannelForward send.
func ForwardNodes(segments ...Segment) []Segment {
	return message.ForwardNodes(segments...)
}

// ===== Events =====

// MessageEvent is one inbound chat message, parsed from a message.receive
// notification.
type MessageEvent = message.MessageEvent

// ParseMessageEvent parses the params of a message.receive notification.
// Useful when consuming notifications through WithNotificationHandler instead
// of the Events iterator.
func ParseMessageEvent(params json.RawMessage) (*MessageEvent, error) {
	return message.ParseEvent(NopLogger(), params)
}
