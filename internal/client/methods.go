package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Backend method names.
const (
	methodInitialize     = "initialize"
	methodMessageSend    = "message.send"
	methodSend           = "send"
	methodSubscribe      = "watch.subscribe"
	methodUnsubscribe    = "watch.unsubscribe"
	methodChatsList      = "chats.list"
	methodMessageReceive = "message.receive"
)

const (
	// initializeTimeout is the timeout for the initialize handshake.
	initializeTimeout = 10 * time.Second

	// sendTimeout is the timeout for message delivery. Media segments can
	// require the backend to upload files, so this is deliberately generous.
	sendTimeout = 60 * time.Second

	// subscribeTimeout is the timeout for watch.subscribe requests.
	subscribeTimeout = 10 * time.Second

	// unsubscribeTimeout is the timeout for watch.unsubscribe requests.
	unsubscribeTimeout = 10 * time.Second

	// listChatsTimeout is the timeout for chats.list requests.
	listChatsTimeout = 10 * time.Second
)

// Initialize performs the handshake and caches the backend capabilities.
func (c *Client) Initialize(ctx context.Context) (*Capabilities, error) {
	result, err := c.RequestWithTimeout(ctx, methodInitialize, nil, initializeTimeout)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	var payload struct {
		Capabilities Capabilities `json:"capabilities"`
	}

	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("initialize: unmarshal capabilities: %w", err)
	}

	c.mu.Lock()
	c.caps = &payload.Capabilities
	c.mu.Unlock()

	c.log.Debug("Backend initialized",
		"streaming", payload.Capabilities.Streaming,
		"attachments", payload.Capabilities.Attachments,
	)

	return &payload.Capabilities, nil
}

// SendText sends plain text to a chat target ("group:<id>", "user:<id>", or
// a bare user id).
func (c *Client) SendText(ctx context.Context, target, text string) (json.RawMessage, error) {
	id, isGroup := ParseTarget(target)

	params := map[string]any{
		"to":      id,
		"text":    text,
		"isGroup": isGroup,
	}

	result, err := c.RequestWithTimeout(ctx, methodMessageSend, params, sendTimeout)
	if err != nil {
		return nil, fmt.Errorf("send text to %s: %w", target, err)
	}

	return result, nil
}

// Send delivers segments or forward nodes via the generic send operation.
func (c *Client) Send(ctx context.Context, req *SendRequest) (json.RawMessage, error) {
	if req == nil {
		return nil, fmt.Errorf("send: nil request")
	}

	result, err := c.RequestWithTimeout(ctx, methodSend, req, sendTimeout)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	return result, nil
}

// Subscribe starts the backend's watch stream. Incoming chat messages arrive
// as message.receive notifications afterwards.
func (c *Client) Subscribe(ctx context.Context, opts *SubscribeOptions) error {
	if opts == nil {
		opts = &SubscribeOptions{}
	}

	result, err := c.RequestWithTimeout(ctx, methodSubscribe, opts, subscribeTimeout)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	if err := checkStatus(result, "subscribed"); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	return nil
}

// Unsubscribe stops the backend's watch stream.
func (c *Client) Unsubscribe(ctx context.Context) error {
	result, err := c.RequestWithTimeout(ctx, methodUnsubscribe, nil, unsubscribeTimeout)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}

	if err := checkStatus(result, "unsubscribed"); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}

	return nil
}

// ListChats returns the backend's known chats as raw entries.
func (c *Client) ListChats(ctx context.Context) ([]json.RawMessage, error) {
	result, err := c.RequestWithTimeout(ctx, methodChatsList, nil, listChatsTimeout)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	var chats []json.RawMessage
	if err := json.Unmarshal(result, &chats); err != nil {
		return nil, fmt.Errorf("list chats: unmarshal: %w", err)
	}

	return chats, nil
}

// checkStatus verifies a status-shaped result.
func checkStatus(result json.RawMessage, want string) error {
	var payload struct {
		Status string `json:"status"`
	}

	if err := json.Unmarshal(result, &payload); err != nil {
		return fmt.Errorf("unmarshal status: %w", err)
	}

	if payload.Status != want {
		return fmt.Errorf("unexpected status %q, want %q", payload.Status, want)
	}

	return nil
}
