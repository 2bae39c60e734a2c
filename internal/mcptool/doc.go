// Package mcptool exposes the bridge as a Model Context Protocol server.
//
// The server registers two tools backed by a running bridge client:
// send_message delivers text to a chat and list_chats reports the chats
// the backend knows about. Serve it over any MCP transport; stdio is the
// usual choice for editor and agent integrations.
package mcptool
