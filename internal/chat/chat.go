// Package chat hosts chat sessions: the transcript, the rendered message
// list and the collaborators a session streams from and saves to.
package chat

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/capitalize-ai/chatstream/internal/codeblock"
	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/pkg/logger"
)

var (
	// ErrBusy is returned while a response is still streaming.
	ErrBusy = errors.New("a response is still streaming")
	// ErrEmptyInput is returned for blank user input. Nothing changes.
	ErrEmptyInput = errors.New("empty input")
	// ErrNotFound is returned for unknown or foreign sessions.
	ErrNotFound = errors.New("chat not found")
)

// Producer opens the response byte stream for a transcript.
type Producer interface {
	Stream(ctx context.Context, req *model.StreamRequest) (io.ReadCloser, error)
}

// Sink persists a transcript.
type Sink interface {
	Name() string
	Save(ctx context.Context, rec *model.ChatRecord) error
}

// Uploader sends a file to the upload endpoint.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error)
}

// EventPublisher receives session lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.ChatEvent) error
}

// Config holds the opaque page-level inputs of a session.
type Config struct {
	Model          model.ModelRef
	SystemMessage  string
	WelcomeMessage string
	Username       string
	// DownloadPath prefixes file ids in banner download links.
	DownloadPath string
	ReadSize     int
	CopyRevert   time.Duration
}

// Deps are the collaborators of a session. Only Producer is required.
type Deps struct {
	Producer  Producer
	Sinks     []Sink
	Uploader  Uploader
	Events    EventPublisher
	Clipboard codeblock.Clipboard
	Logger    *logger.Logger
}
