// Package message provides OneBot message segments and receive events for the
// nap-msg backend.
package message

import "encoding/json"

// Segment type constants.
const (
	SegmentTypeText  = "text"
	SegmentTypeImage = "image"
	SegmentTypeFile  = "file"
	SegmentTypeVideo = "video"
	SegmentTypeReply = "reply"
	SegmentTypeNode  = "node"
)

// Segment is one element of an OneBot message array. Every segment marshals
// to {"type": ..., "data": {...}} and is relayed by the backend untouched.
type Segment interface {
	SegmentType() string
}

// Compile-time verification that all segment types implement Segment.
var (
	_ Segment = (*TextSegment)(nil)
	_ Segment = (*ImageSegment)(nil)
	_ Segment = (*FileSegment)(nil)
	_ Segment = (*VideoSegment)(nil)
	_ Segment = (*ReplySegment)(nil)
	_ Segment = (*NodeSegment)(nil)
	_ Segment = (*RawSegment)(nil)
)

// TextSegment contains plain text.
type TextSegment struct {
	Type string          `json:"type"`
	Data TextSegmentData `json:"data"`
}

// TextSegmentData carries the text payload.
type TextSegmentData struct {
	Text string `json:"text"`
}

// SegmentType implements the Segment interface.
func (s *TextSegment) SegmentType() string { return SegmentTypeText }

// Text builds a text segment.
func Text(text string) *TextSegment {
	return &TextSegment{Type: SegmentTypeText, Data: TextSegmentData{Text: text}}
}

// ImageSegment references an image by local path, URL, or base64 payload.
//
//nolint:tagliatelle // OneBot wire format uses snake_case
type ImageSegment struct {
	Type string           `json:"type"`
	Data ImageSegmentData `json:"data"`
}

// ImageSegmentData carries the image source. URL is set on received images.
type ImageSegmentData struct {
	File string `json:"file"`
	URL  string `json:"url,omitempty"`
}

// SegmentType implements the Segment interface.
func (s *ImageSegment) SegmentType() string { return SegmentTypeImage }

// Image builds an image segment from a file path, URL, or base64 payload.
func Image(file string) *ImageSegment {
	return &ImageSegment{Type: SegmentTypeImage, Data: ImageSegmentData{File: file}}
}

// FileSegment uploads a file.
type FileSegment struct {
	Type string          `json:"type"`
	Data FileSegmentData `json:"data"`
}

// FileSegmentData carries the file source and an optional display name.
type FileSegmentData struct {
	File string `json:"file"`
	Name string `json:"name,omitempty"`
}

// SegmentType implements the Segment interface.
func (s *FileSegment) SegmentType() string { return SegmentTypeFile }

// File builds a file segment.
func File(file string) *FileSegment {
	return &FileSegment{Type: SegmentTypeFile, Data: FileSegmentData{File: file}}
}

// VideoSegment references a video by local path or URL.
type VideoSegment struct {
	Type string           `json:"type"`
	Data VideoSegmentData `json:"data"`
}

// VideoSegmentData carries the video source.
type VideoSegmentData struct {
	File string `json:"file"`
}

// SegmentType implements the Segment interface.
func (s *VideoSegment) SegmentType() string { return SegmentTypeVideo }

// Video builds a video segment from a file path or URL.
func Video(file string) *VideoSegment {
	return &VideoSegment{Type: SegmentTypeVideo, Data: VideoSegmentData{File: file}}
}

// ReplySegment marks the message as a reply to an earlier message.
type ReplySegment struct {
	Type string           `json:"type"`
	Data ReplySegmentData `json:"data"`
}

// ReplySegmentData carries the id of the message being replied to.
type ReplySegmentData struct {
	ID string `json:"id"`
}

// SegmentType implements the Segment interface.
func (s *ReplySegment) SegmentType() string { return SegmentTypeReply }

// Reply builds a reply segment referencing a message id.
func Reply(messageID string) *ReplySegment {
	return &ReplySegment{Type: SegmentTypeReply, Data: ReplySegmentData{ID: messageID}}
}

// NodeSegment is a custom forward node: content attributed to a sender
// identity inside a forwarded bundle.
type NodeSegment struct {
	Type string          `json:"type"`
	Data NodeSegmentData `json:"data"`
}

// NodeSegmentData carries the node identity and its content segments.
//
//nolint:tagliatelle // OneBot wire format uses snake_case
type NodeSegmentData struct {
	UserID   string    `json:"user_id"`
	Nickname string    `json:"nickname"`
	Content  []Segment `json:"content"`
}

// SegmentType implements the Segment interface.
func (s *NodeSegment) SegmentType() string { return SegmentTypeNode }

// UnmarshalJSON implements json.Unmarshaler for NodeSegmentData.
// Content needs per-element type dispatch.
func (d *NodeSegmentData) UnmarshalJSON(data []byte) error {
	type Alias NodeSegmentData

	aux := &struct {
		Content json.RawMessage `json:"content,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Content) == 0 || string(aux.Content) == "null" {
		return nil
	}

	content, err := UnmarshalSegments(aux.Content)
	if err != nil {
		return err
	}

	d.Content = content

	return nil
}

// RawSegment preserves segment types this package does not model (at, face,
// record, ...). Data is kept verbatim so round-tripping is lossless.
type RawSegment struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SegmentType implements the Segment interface.
func (s *RawSegment) SegmentType() string { return s.Type }

// UnmarshalSegment unmarshals a single segment from JSON. Unknown segment
// types decode as RawSegment rather than failing.
func UnmarshalSegment(data []byte) (Segment, error) {
	var typeHolder struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &typeHolder); err != nil {
		return nil, err
	}

	switch typeHolder.Type {
	case SegmentTypeText:
		var seg TextSegment
		if err := json.Unmarshal(data, &seg); err != nil {
			return nil, err
		}

		return &seg, nil
	case SegmentTypeImage:
		var seg ImageSegment
		if err := json.Unmarshal(data, &seg); err != nil {
			return nil, err
		}

		return &seg, nil
	case SegmentTypeFile:
		var seg FileSegment
		if err := json.Unmarshal(data, &seg); err != nil {
			return nil, err
		}

		return &seg, nil
	case SegmentTypeVideo:
		var seg VideoSegment
		if err := json.Unmarshal(data, &seg); err != nil {
			return nil, err
		}

		return &seg, nil
	case SegmentTypeReply:
		var seg ReplySegment
		if err := json.Unmarshal(data, &seg); err != nil {
			return nil, err
		}

		return &seg, nil
	case SegmentTypeNode:
		var seg NodeSegment
		if err := json.Unmarshal(data, &seg); err != nil {
			return nil, err
		}

		return &seg, nil
	default:
		var seg RawSegment
		if err := json.Unmarshal(data, &seg); err != nil {
			return nil, err
		}

		return &seg, nil
	}
}

// UnmarshalSegments unmarshals a JSON array of segments.
func UnmarshalSegments(data []byte) ([]Segment, error) {
	var rawSegments []json.RawMessage
	if err := json.Unmarshal(data, &rawSegments); err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(rawSegments))

	for _, raw := range rawSegments {
		seg, err := UnmarshalSegment(raw)
		if err != nil {
			return nil, err
		}

		segments = append(segments, seg)
	}

	return segments, nil
}

// PlainText concatenates the text content of every text segment. Received
// messages often interleave text with at/face segments; this extracts the
// readable part.
func PlainText(segments []Segment) string {
	var out string

	for _, seg := range segments {
		if text, ok := seg.(*TextSegment); ok {
			out += text.Data.Text
		}
	}

	return out
}
