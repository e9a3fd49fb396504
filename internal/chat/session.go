package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/capitalize-ai/chatstream/internal/codeblock"
	"github.com/capitalize-ai/chatstream/internal/markup"
	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/internal/stream"
	"github.com/capitalize-ai/chatstream/pkg/logger"
	"github.com/capitalize-ai/chatstream/pkg/metrics"
	"github.com/capitalize-ai/chatstream/pkg/tracing"
)

// UpdateFunc observes a streaming response.
type UpdateFunc func(stream.Update)

// Session is one chat: its transcript and rendered message list.
//
// The transcript and every node under the message list are guarded by one
// mutex, which is also handed to the stream orchestrator and the copy
// control. Only one response streams at a time.
type Session struct {
	ID string

	cfg  Config
	deps Deps
	log  *logger.Logger

	mu          sync.Mutex
	chatStarted string
	transcript  *model.Transcript
	root        *html.Node
	displayed   map[string]struct{}
	views       []*stream.View
	status      string

	busy   atomic.Bool
	cancel stream.Cancel
	copier *codeblock.CopyControl
}

// NewSession creates a session showing the welcome message.
func NewSession(cfg Config, deps Deps) *Session {
	s := &Session{
		ID:   uuid.Must(uuid.NewV7()).String(),
		cfg:  cfg,
		deps: deps,
	}
	s.log = deps.Logger.OrNop().With(zap.String("chat_id", s.ID), zap.String("username", cfg.Username))
	clip := deps.Clipboard
	if clip == nil {
		clip = codeblock.SystemClipboard{}
	}
	s.copier = codeblock.NewCopyControl(clip, cfg.CopyRevert, &s.mu)

	s.mu.Lock()
	s.chatStarted = newChatStarted()
	s.load(nil)
	s.mu.Unlock()
	return s
}

func newChatStarted() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// Restore replaces the session with a saved transcript and replays it.
func (s *Session) Restore(chatStarted string, messages []model.Message) error {
	return s.replace(func() {
		if chatStarted != "" {
			s.chatStarted = chatStarted
		}
		s.load(messages)
	})
}

// Reset starts a new chat in this session.
func (s *Session) Reset() error {
	return s.replace(func() {
		s.chatStarted = newChatStarted()
		s.load(nil)
	})
}

// replace runs fn under s.mu while holding the busy flag, so no stream can
// start against the transcript being swapped out.
func (s *Session) replace(fn func()) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	return nil
}

// load rebuilds transcript and message list. Callers hold s.mu.
func (s *Session) load(saved []model.Message) {
	s.transcript = model.RestoreTranscript(s.cfg.SystemMessage, saved)
	s.root = newMessageList()
	s.displayed = make(map[string]struct{})
	s.views = nil
	s.status = ""

	for _, a := range s.transcript.System().Attachments {
		s.showBanner(a)
	}

	if s.transcript.Len() == 1 {
		if s.cfg.WelcomeMessage != "" {
			s.root.AppendChild(welcomeBubble(s.cfg.WelcomeMessage).Root)
		}
		return
	}

	for _, m := range s.transcript.Messages()[1:] {
		for _, a := range m.Attachments {
			s.showBanner(a)
		}
		switch m.Role {
		case model.RoleAssistant:
			v := assistantBubble(m.Content)
			s.views = append(s.views, v)
			s.root.AppendChild(v.Root)
		case model.RoleUser:
			s.root.AppendChild(userBubble(m.Content))
		}
	}
}

// showBanner renders a file banner unless one is already shown for the
// attachment id. Callers hold s.mu.
func (s *Session) showBanner(a model.Attachment) bool {
	if a.Type != model.AttachmentFile {
		return false
	}
	if _, ok := s.displayed[a.ID]; ok {
		return false
	}
	s.displayed[a.ID] = struct{}{}
	s.root.AppendChild(fileBanner(a.Name, a.ID, s.cfg.DownloadPath))
	return true
}

// Submit appends the user input and streams the assistant response. Blank
// input returns ErrEmptyInput without touching anything.
func (s *Session) Submit(ctx context.Context, text string, onUpdate UpdateFunc) (stream.Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return stream.Outcome{}, ErrEmptyInput
	}
	return s.submit(ctx, model.NewMessage(model.RoleUser, text), onUpdate)
}

func (s *Session) submit(ctx context.Context, msg model.Message, onUpdate UpdateFunc) (stream.Outcome, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return stream.Outcome{}, ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	if err := s.transcript.Append(msg); err != nil {
		s.mu.Unlock()
		return stream.Outcome{}, fmt.Errorf("append user message: %w", err)
	}
	s.root.AppendChild(userBubble(msg.Content))
	s.mu.Unlock()

	return s.respond(ctx, onUpdate), nil
}

// respond streams one assistant message for the current transcript.
// Callers hold the busy flag.
func (s *Session) respond(ctx context.Context, onUpdate UpdateFunc) stream.Outcome {
	s.cancel.Reset()

	s.mu.Lock()
	view := stream.NewView()
	s.views = append(s.views, view)
	s.root.AppendChild(view.Root)
	req := &model.StreamRequest{Messages: s.transcript.Messages(), Model: s.cfg.Model}
	s.mu.Unlock()

	opts := stream.Options{
		ReadSize: s.cfg.ReadSize,
		Lock:     &s.mu,
		OnUpdate: onUpdate,
		Model:    s.cfg.Model.Model,
		Logger:   s.log,
	}

	var out stream.Outcome
	body, err := s.deps.Producer.Stream(ctx, req)
	if err != nil {
		s.log.Error("open stream failed", zap.Error(err))
		out = stream.Fail(view, err, opts)
	} else {
		if body != nil {
			defer body.Close()
		}
		out = stream.Run(ctx, body, view, &s.cancel, opts)
	}

	s.mu.Lock()
	if err := s.transcript.Append(model.NewMessage(model.RoleAssistant, out.Content)); err != nil {
		s.log.Error("append assistant message", zap.Error(err))
	}
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	s.persist(ctx)
	reason, meta := outcomeMetadata(out)
	s.publish(ctx, outcomeEvent(out.State), reason, meta)
	return out
}

func outcomeEvent(state stream.State) model.EventType {
	switch state {
	case stream.Cancelled:
		return model.EventTypeCancel
	case stream.Errored:
		return model.EventTypeError
	default:
		return model.EventTypeCompleted
	}
}

// Stop asks the running stream to end after its current chunk. It
// reports whether a stream was running.
func (s *Session) Stop() bool {
	if !s.busy.Load() {
		return false
	}
	s.cancel.Cancel()
	return true
}

// Busy reports whether a response is streaming.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// persist hands the transcript to every sink. Failures are logged and
// counted but never returned.
func (s *Session) persist(ctx context.Context) {
	if len(s.deps.Sinks) == 0 {
		return
	}
	rec := s.Record()

	ctx, span := tracing.Tracer().Start(ctx, "chat.persist")
	defer span.End()
	span.SetAttributes(attribute.Int("chat.messages", len(rec.Messages)))

	for _, sink := range s.deps.Sinks {
		if err := sink.Save(ctx, rec); err != nil {
			metrics.PersistFailuresTotal.WithLabelValues(sink.Name()).Inc()
			span.RecordError(err)
			s.log.Warn("save chat failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}

func (s *Session) publish(ctx context.Context, typ model.EventType, reason string, meta map[string]any) {
	if s.deps.Events == nil {
		return
	}
	ev := &model.ChatEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ChatID:    s.ID,
		Username:  s.cfg.Username,
		Type:      typ,
		Reason:    reason,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}
	if err := s.deps.Events.PublishEvent(ctx, ev); err != nil {
		s.log.Warn("publish chat event failed", zap.String("type", string(typ)), zap.Error(err))
	}
}

func outcomeMetadata(out stream.Outcome) (string, map[string]any) {
	meta := map[string]any{
		"chunks":      out.Chunks,
		"duration_ms": out.Duration.Milliseconds(),
	}
	if out.Usage != nil {
		meta["total_tokens"] = out.Usage.TotalTokens
	}
	var reason string
	if out.Err != nil {
		reason = out.Err.Error()
	}
	return reason, meta
}

// Record returns the transcript as handed to persistence sinks.
func (s *Session) Record() *model.ChatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &model.ChatRecord{
		ChatID:      s.ID,
		Username:    s.cfg.Username,
		ChatStarted: s.chatStarted,
		Messages:    s.transcript.Messages(),
		UpdatedAt:   time.Now(),
	}
	if len(rec.Messages) > 1 {
		rec.FirstMessage = rec.Messages[1].Content.String()
	}
	return rec
}

// Messages returns a snapshot of the transcript.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// ChatStarted returns the chat start identifier (epoch seconds).
func (s *Session) ChatStarted() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatStarted
}

// Username returns the session owner.
func (s *Session) Username() string {
	return s.cfg.Username
}

// Attachments returns the files attached to the chat, oldest first.
func (s *Session) Attachments() []model.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Attachment(nil), s.transcript.System().Attachments...)
}

// Status returns the upload status text.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// HTML renders the message list.
func (s *Session) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markup.Render(s.root)
}

// Response describes the session for API callers.
func (s *Session) Response() *model.ChatResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &model.ChatResponse{
		ID:          s.ID,
		ChatStarted: s.chatStarted,
		Messages:    s.transcript.Messages(),
		HTML:        markup.Render(s.root),
		Streaming:   s.busy.Load(),
	}
}

// CopyCodeBlock copies the body of the n-th code block (0-based, in
// document order) to the clipboard.
func (s *Session) CopyCodeBlock(n int) error {
	s.mu.Lock()
	blocks := codeblock.Blocks(s.root)
	if n < 0 || n >= len(blocks) {
		s.mu.Unlock()
		return fmt.Errorf("code block %d of %d: %w", n, len(blocks), ErrNotFound)
	}
	button := markup.Find(blocks[n], markup.ByClass("copy-btn"))
	text := codeblock.BlockText(blocks[n])
	s.mu.Unlock()

	return s.copier.CopyText(button, text)
}

// CopyMessage copies the complete text of the n-th finished assistant
// message to the clipboard.
func (s *Session) CopyMessage(n int) error {
	s.mu.Lock()
	var done []*stream.View
	for _, v := range s.views {
		if _, ok := v.CompleteMessage(); ok {
			done = append(done, v)
		}
	}
	if n < 0 || n >= len(done) {
		s.mu.Unlock()
		return fmt.Errorf("message %d of %d: %w", n, len(done), ErrNotFound)
	}
	text, _ := done[n].CompleteMessage()
	button := done[n].CopyButton()
	s.mu.Unlock()

	return s.copier.CopyText(button, text)
}

// Close stops pending copy reverts.
func (s *Session) Close() {
	s.cancel.Cancel()
	s.copier.Stop()
}
