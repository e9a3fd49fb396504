package model

import (
	"time"
)

// ModelRef selects the model the backend should stream from.
type ModelRef struct {
	Model    string `json:"model"`
	Provider string `json:"provider,omitempty"`
}

// StreamRequest is the body posted to the streaming endpoint.
type StreamRequest struct {
	Messages []Message `json:"messages"`
	Model    ModelRef  `json:"model"`
}

// Usage is the token accounting trailer sent after the stop sentinel.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EventType represents the type of chat lifecycle event.
type EventType string

const (
	EventTypeCompleted EventType = "completed"
	EventTypeCancel    EventType = "cancel"
	EventTypeError     EventType = "error"
	EventTypeUpload    EventType = "upload"
)

// ChatEvent is a lifecycle event published next to saved transcripts.
type ChatEvent struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Username  string         `json:"username"`
	Type      EventType      `json:"type"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Sequence  uint64         `json:"sequence,omitempty"`
}

// RenderEvent carries the current markup of a message bubble.
type RenderEvent struct {
	HTML  string `json:"html"`
	State string `json:"state"`
}

// DoneEvent is sent when a stream reached a terminal state.
type DoneEvent struct {
	State   string `json:"state"`
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
}

// FileEvent is sent after an upload was attached to the chat.
type FileEvent struct {
	Attachment Attachment `json:"attachment"`
	HTML       string     `json:"html,omitempty"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
