// Package stream renders a chunked assistant response into a message view
// while it arrives.
package stream

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/capitalize-ai/chatstream/internal/fence"
	"github.com/capitalize-ai/chatstream/internal/model"
)

// ErrNoBody is returned when a producer yields no response body.
var ErrNoBody = errors.New("failed to get a readable stream from the response")

// State is the lifecycle of one streamed message.
type State int

const (
	Idle State = iota
	Streaming
	Completed
	Cancelled
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Errored
}

// Cancel is a cooperative cancellation token. The read loop checks it
// before each read. The zero value is ready to use; a nil *Cancel is never
// cancelled.
type Cancel struct {
	flag atomic.Bool
}

// Cancel requests that the stream stop after the current chunk.
func (c *Cancel) Cancel() {
	c.flag.Store(true)
}

// Cancelled reports whether Cancel was called.
func (c *Cancel) Cancelled() bool {
	return c != nil && c.flag.Load()
}

// Reset clears the token for the next stream.
func (c *Cancel) Reset() {
	c.flag.Store(false)
}

// StreamState is the parse state of one streamed message. It is created
// fresh for every message and never shared.
type StreamState struct {
	// Buffer is the decoded text received so far, truncated at the stop
	// sentinel once seen.
	Buffer string
	// Cursor is the offset up to which Buffer has been committed to the
	// view. Text past it belongs to the segment still being rendered.
	Cursor int
	// Language of the open code block.
	Language string

	det     fence.Detector
	stopped bool
	trailer []byte
}

// InCodeBlock reports whether a code block is open.
func (s *StreamState) InCodeBlock() bool {
	return s.det.InCode
}

// AwaitingLanguage reports whether an opening fence was seen but its
// language line is not complete.
func (s *StreamState) AwaitingLanguage() bool {
	return s.det.Awaiting()
}

// PendingBackticks is the length of an unresolved backtick run.
func (s *StreamState) PendingBackticks() int {
	return s.det.Run()
}

// Stopped reports whether the stop sentinel was seen.
func (s *StreamState) Stopped() bool {
	return s.stopped
}

// Update is passed to Options.OnUpdate after each processed chunk and once
// more when the stream ends.
type Update struct {
	State  State
	HTML   string
	Chunks int
}

// Outcome summarises a finished stream.
type Outcome struct {
	State    State
	Content  string
	Usage    *model.Usage
	Err      error
	Chunks   int
	Duration time.Duration
}
