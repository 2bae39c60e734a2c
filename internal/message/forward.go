package message

import "os"

// Environment variables configuring the sender identity stamped on forward
// nodes, matching the backend's own CLI behavior.
const (
	ForwardUserIDEnv   = "NAPCAT_FORWARD_USER_ID"
	ForwardNicknameEnv = "NAPCAT_FORWARD_NICKNAME"

	// DefaultForwardNickname is used when NAPCAT_FORWARD_NICKNAME is unset.
	DefaultForwardNickname = "メイド"
)

// Node builds a custom forward node attributing content to the given identity.
func Node(userID, nickname string, content ...Segment) *NodeSegment {
	return &NodeSegment{
		Type: SegmentTypeNode,
		Data: NodeSegmentData{
			UserID:   userID,
			Nickname: nickname,
			Content:  content,
		},
	}
}

// ForwardIdentity returns the node identity from the environment.
func ForwardIdentity() (userID, nickname string) {
	userID = os.Getenv(ForwardUserIDEnv)

	nickname = os.Getenv(ForwardNicknameEnv)
	if nickname == "" {
		nickname = DefaultForwardNickname
	}

	return userID, nickname
}

// ForwardNodes wraps each segment in its own node under the environment
// identity, producing the messages array for a group_forward send.
func ForwardNodes(segments ...Segment) []Segment {
	userID, nickname := ForwardIdentity()

	nodes := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		nodes = append(nodes, Node(userID, nickname, seg))
	}

	return nodes
}
