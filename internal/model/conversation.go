package model

import (
	"time"
)

// ChatRecord is a saved chat as kept by the history store.
type ChatRecord struct {
	ChatID       string    `json:"chat_id,omitempty"`
	Username     string    `json:"username"`
	ChatStarted  string    `json:"chat_started"`
	FirstMessage string    `json:"first_message"`
	Messages     []Message `json:"messages,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateChatRequest is the request to open a chat session.
type CreateChatRequest struct {
	Messages    []Message `json:"messages,omitempty"`
	ChatStarted string    `json:"chat_started,omitempty"`
}

// ChatResponse describes a chat session.
type ChatResponse struct {
	ID          string    `json:"id"`
	ChatStarted string    `json:"chat_started"`
	Messages    []Message `json:"messages,omitempty"`
	HTML        string    `json:"html"`
	Streaming   bool      `json:"streaming"`
}

// SendMessageRequest is the request to submit user input.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ListChatsResponse is the response for listing saved chats.
type ListChatsResponse struct {
	Chats []ChatRecord `json:"chats"`
	Total int          `json:"total"`
}
