package napmsg

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/napbridge/napmsg-go/internal/mcptool"
)

// NewMCPServer exposes a bridge client as a Model Context Protocol server
// with two tools: send_message and list_chats. Serve it over any MCP
// transport; stdio is the usual choice:
//
//	client := napmsg.NewClient()
//	if err := client.Start(ctx, napmsg.WithLogger(log)); err != nil {
//	    return err
//	}
//	defer client.Stop()
//	if _, err := client.Initialize(ctx); err != nil {
//	    return err
//	}
//
//	server := napmsg.NewMCPServer(client)
//	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
//	    return err
//	}
//
// The client must be started and initialized before tool calls arrive; tool
// calls against a stopped client fail with ErrNotStarted in the tool result.
func NewMCPServer(client Client) *mcp.Server {
	var log *slog.Logger
	if w, ok := client.(*clientWrapper); ok {
		log = w.logger()
	}

	return mcptool.NewServer(log, client)
}
