package model

import (
	"encoding/json"
	"errors"
)

// ErrSystemMessage is returned when a caller tries to append a second
// system message.
var ErrSystemMessage = errors.New("transcript already has a system message")

// Transcript is the ordered conversation. Index 0 is always the single
// system message; it is only ever mutated by appending context or
// attachments.
type Transcript struct {
	messages []Message
}

// NewTranscript creates a transcript holding only the system message.
func NewTranscript(systemContent string) *Transcript {
	return &Transcript{
		messages: []Message{NewMessage(RoleSystem, systemContent)},
	}
}

// RestoreTranscript rebuilds a transcript from saved messages. A missing
// system message is inserted at index 0 and stray system messages further
// down are dropped.
func RestoreTranscript(systemContent string, saved []Message) *Transcript {
	t := NewTranscript(systemContent)
	for i, m := range saved {
		if m.Role == RoleSystem {
			if i == 0 {
				t.messages[0] = m
			}
			continue
		}
		t.messages = append(t.messages, m)
	}
	return t
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// System returns a copy of the system message.
func (t *Transcript) System() Message {
	return t.messages[0]
}

// At returns a copy of message i.
func (t *Transcript) At(i int) Message {
	return t.messages[i]
}

// Messages returns a snapshot of all messages.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the final message.
func (t *Transcript) Last() Message {
	return t.messages[len(t.messages)-1]
}

// Append adds a user or assistant message.
func (t *Transcript) Append(m Message) error {
	if m.Role == RoleSystem {
		return ErrSystemMessage
	}
	if !m.Role.Valid() {
		return errors.New("invalid message role")
	}
	t.messages = append(t.messages, m)
	return nil
}

// AppendContext appends text to the system message.
func (t *Transcript) AppendContext(text string) {
	sys := &t.messages[0]
	sys.Content = StringContent(sys.Content.String() + text)
}

// AddAttachment records an attachment on the system message.
func (t *Transcript) AddAttachment(a Attachment) {
	sys := &t.messages[0]
	sys.Attachments = append(sys.Attachments, a)
}

// MarshalJSON implements json.Marshaler.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.messages)
}
