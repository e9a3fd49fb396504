package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chatstream/internal/model"
)

const (
	// StreamName is the name of the chats stream.
	StreamName = "CHATS"

	// SubjectPrefix is the prefix for all chat subjects.
	SubjectPrefix = "chats"
)

// StreamManager saves transcripts and publishes chat events to JetStream.
type StreamManager struct {
	js jetstream.JetStream
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{js: client.JetStream()}
}

// EnsureStream ensures the chats stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	_, err := m.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = m.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPrefix + ".>"},
		// Only the latest transcript per chat is worth keeping.
		MaxMsgsPerSubject: 1,
		Retention:         jetstream.LimitsPolicy,
		MaxAge:            90 * 24 * time.Hour,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Compression:       jetstream.S2Compression,
		Description:       "Saved chat transcripts and chat lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

func chatKey(chatID, chatStarted string) string {
	if chatID != "" {
		return chatID
	}
	return chatStarted
}

// RecordSubject returns the subject a transcript is saved on.
func RecordSubject(username, chatID string) string {
	return fmt.Sprintf("%s.%s.%s.record", SubjectPrefix, token(username), token(chatID))
}

// EventSubject returns the subject for an event.
func EventSubject(username, chatID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, token(username), token(chatID), eventType)
}

// ChatFilter returns the filter subject for everything about one chat.
func ChatFilter(username, chatID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, token(username), token(chatID))
}

// Name implements the chat sink interface.
func (m *StreamManager) Name() string {
	return "nats"
}

// Save publishes the transcript. Each save replaces the chat's previous
// record.
func (m *StreamManager) Save(ctx context.Context, rec *model.ChatRecord) error {
	if rec.ChatStarted == "" {
		return errors.New("chat_started is required")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	subject := RecordSubject(rec.Username, chatKey(rec.ChatID, rec.ChatStarted))
	if _, err := m.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}

	return nil
}

// PublishEvent publishes an event to JetStream and stores the assigned
// stream sequence on it.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ChatEvent) error {
	if event.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to create event id: %w", err)
		}
		event.ID = id.String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := EventSubject(event.Username, event.ChatID, event.Type)
	ack, err := m.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	event.Sequence = ack.Sequence
	return nil
}
