// Package model defines data structures for the chat client.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// PartType tags a content part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// ImageURL references an image, usually a data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is one element of rich message content.
type ContentPart struct {
	Type     PartType  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an image content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImageURL, ImageURL: &ImageURL{URL: url}}
}

// Content is either a plain string or an ordered list of parts. It
// marshals to whichever JSON shape it holds.
type Content struct {
	Text  string
	Parts []ContentPart
}

// StringContent wraps plain text.
func StringContent(s string) Content {
	return Content{Text: s}
}

// PartsContent wraps content parts.
func PartsContent(parts ...ContentPart) Content {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Content{Parts: parts}
}

// IsParts reports whether the content is a part list.
func (c Content) IsParts() bool {
	return c.Parts != nil
}

// String flattens the content to text. Image parts are skipped.
func (c Content) String() string {
	if !c.IsParts() {
		return c.Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsParts() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{Text: s}
		return nil
	case data[0] == '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = PartsContent(parts...)
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}
}

// AttachmentFile is the only attachment type rendered as a banner.
const AttachmentFile = "file"

// Attachment describes an uploaded file associated with a message.
type Attachment struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	FileType  string `json:"file_type"`
	Timestamp int64  `json:"timestamp"`
}

// Message is one role-tagged entry of a transcript.
type Message struct {
	Role        Role         `json:"role"`
	Content     Content      `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewMessage creates a message with plain text content.
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Content: StringContent(text)}
}
