package message

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/napbridge/napmsg-go/internal/errors"
)

// MessageEvent is a normalized message.receive payload.
//
// The backend relays filtered chat events; field names vary between
// snake_case and camelCase depending on the relay version, so parsing accepts
// both. Raw always holds the complete params for fields not modeled here.
type MessageEvent struct {
	SenderID  string
	ChatID    string
	IsGroup   bool
	Text      string
	MessageID string
	Timestamp int64
	Raw       json.RawMessage
}

// ParseEvent converts raw message.receive params into a MessageEvent.
//
// Parsing is deliberately tolerant: missing fields stay zero-valued and the
// raw params are retained, so a relay that adds or renames fields degrades the
// typed view without dropping the event. Only malformed JSON is an error.
func ParseEvent(log *slog.Logger, params json.RawMessage) (*MessageEvent, error) {
	log = log.With("component", "event_parser")

	if len(params) == 0 || string(params) == "null" {
		return nil, &errors.EventParseError{
			Message: "empty params",
			Raw:     params,
		}
	}

	dec := json.NewDecoder(bytes.NewReader(params))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		log.Debug("Event params are not a JSON object", "error", err)

		return nil, &errors.EventParseError{
			Message: "params are not a JSON object",
			Err:     err,
			Raw:     params,
		}
	}

	event := &MessageEvent{
		Raw: append(json.RawMessage(nil), params...),
	}

	event.SenderID, _ = stringField(data, "sender_id", "senderId", "user_id", "userId")
	if event.SenderID == "" {
		if sender, ok := data["sender"].(map[string]any); ok {
			event.SenderID, _ = stringField(sender, "user_id", "userId")
		}
	}

	event.MessageID, _ = stringField(data, "message_id", "messageId", "id")

	groupID, hasGroup := stringField(data, "group_id", "groupId")

	if isGroup, ok := boolField(data, "is_group", "isGroup"); ok {
		event.IsGroup = isGroup
	} else if messageType, ok := stringField(data, "message_type", "messageType"); ok {
		event.IsGroup = messageType == "group"
	} else {
		event.IsGroup = hasGroup
	}

	event.ChatID, _ = stringField(data, "chat_id", "chatId")
	if event.ChatID == "" {
		// Group chats are identified by the group, private chats by the peer
		if event.IsGroup && hasGroup {
			event.ChatID = groupID
		} else {
			event.ChatID = event.SenderID
		}
	}

	event.Text = eventText(data)
	event.Timestamp, _ = intField(data, "time", "timestamp")

	log.Debug("Parsed message event",
		"chat_id", event.ChatID,
		"sender_id", event.SenderID,
		"is_group", event.IsGroup,
	)

	return event, nil
}

// eventText extracts the readable text. The relay normally sends a flattened
// "text" field; fall back to the OneBot raw_message or a segment array.
func eventText(data map[string]any) string {
	if text, ok := stringField(data, "text", "raw_message", "rawMessage"); ok {
		return text
	}

	switch msg := data["message"].(type) {
	case string:
		return msg
	case []any:
		raw, err := json.Marshal(msg)
		if err != nil {
			return ""
		}

		segments, err := UnmarshalSegments(raw)
		if err != nil {
			return ""
		}

		return PlainText(segments)
	}

	return ""
}

// stringField returns the first present key as a string. Numeric ids are
// rendered decimally, so a relay sending user_id as a number still matches.
func stringField(data map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		switch v := data[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case json.Number:
			return v.String(), true
		}
	}

	return "", false
}

// boolField returns the first present key as a bool.
func boolField(data map[string]any, keys ...string) (bool, bool) {
	for _, key := range keys {
		if v, ok := data[key].(bool); ok {
			return v, true
		}
	}

	return false, false
}

// intField returns the first present numeric key as an int64.
func intField(data map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		if v, ok := data[key].(json.Number); ok {
			if n, err := v.Int64(); err == nil {
				return n, true
			}
		}
	}

	return 0, false
}
