package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/napbridge/napmsg-go/internal/client"
)

const (
	// ServerName identifies the bridge server to connecting MCP clients.
	ServerName = "napmsg-bridge"
	// ServerVersion is reported in the MCP initialize handshake.
	ServerVersion = "0.1.0"

	// ToolSendMessage sends a text message to a chat.
	ToolSendMessage = "send_message"
	// ToolListChats lists the chats known to the backend.
	ToolListChats = "list_chats"
)

// Bridge is the subset of the bridge client the tools call.
type Bridge interface {
	SendText(ctx context.Context, target, text string) (json.RawMessage, error)
	ListChats(ctx context.Context) ([]json.RawMessage, error)
}

// Compile-time verification that the bridge client satisfies Bridge.
var _ Bridge = (*client.Client)(nil)

// bridgeTool pairs a tool definition with its handler.
type bridgeTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewServer builds the MCP server exposing bridge as tools.
//
// The returned server carries no transport; serve it with Run and the
// transport of your choice, typically mcp.StdioTransport.
func NewServer(log *slog.Logger, bridge Bridge) *mcp.Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	log = log.With("component", "mcp_server")

	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	for _, t := range bridgeTools(log, bridge) {
		server.AddTool(t.tool, t.handler)
	}

	return server
}

// bridgeTools returns the tool set backed by bridge.
func bridgeTools(log *slog.Logger, bridge Bridge) []bridgeTool {
	return []bridgeTool{
		{tool: sendMessageTool(), handler: sendMessageHandler(log, bridge)},
		{tool: listChatsTool(), handler: listChatsHandler(log, bridge)},
	}
}

// sendMessageArgs is the send_message tool input.
type sendMessageArgs struct {
	Target string `json:"target"`
	Text   string `json:"text"`
	Group  bool   `json:"group"`
}

func sendMessageTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolSendMessage,
		Description: "Send a text message to a chat through the nap-msg backend.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"target": {
					Type:        "string",
					Description: "Chat to deliver to: a bare id, or prefixed like group:123456 or user:10001.",
				},
				"text": {
					Type:        "string",
					Description: "Message text.",
				},
				"group": {
					Type:        "boolean",
					Description: "Treat a bare target id as a group chat. Ignored when the target carries a prefix.",
				},
			},
			Required: []string{"target", "text"},
		},
	}
}

func sendMessageHandler(log *slog.Logger, bridge Bridge) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args sendMessageArgs
		if err := unmarshalArgs(req, &args); err != nil {
			return errorResult(err.Error()), nil
		}

		if args.Target == "" {
			return errorResult("target is required"), nil
		}

		if args.Text == "" {
			return errorResult("text is required"), nil
		}

		// An explicit group:/user: prefix on the target wins over the flag.
		target := args.Target
		if args.Group && !strings.Contains(target, ":") {
			target = client.FormatTarget(target, true)
		}

		ack, err := bridge.SendText(ctx, target, args.Text)
		if err != nil {
			log.Warn("Send message tool failed", "target", target, "error", err)

			return errorResult("send failed: " + err.Error()), nil
		}

		if len(ack) == 0 || string(ack) == "null" {
			return textResult("sent"), nil
		}

		return textResult(string(ack)), nil
	}
}

func listChatsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolListChats,
		Description: "List the chats known to the nap-msg backend as a JSON array.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}
}

func listChatsHandler(log *slog.Logger, bridge Bridge) mcp.ToolHandler {
	return func(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chats, err := bridge.ListChats(ctx)
		if err != nil {
			log.Warn("List chats tool failed", "error", err)

			return errorResult("list chats failed: " + err.Error()), nil
		}

		if len(chats) == 0 {
			return textResult("[]"), nil
		}

		data, err := json.Marshal(chats)
		if err != nil {
			return errorResult("encode chats: " + err.Error()), nil
		}

		return textResult(string(data)), nil
	}
}

// textResult creates a CallToolResult with text content.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// errorResult creates a CallToolResult indicating an error.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// unmarshalArgs decodes CallToolRequest arguments into v.
// Absent arguments leave v untouched.
func unmarshalArgs(req *mcp.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}

	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return nil
}
