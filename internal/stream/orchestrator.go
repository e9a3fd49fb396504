package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/capitalize-ai/chatstream/internal/codeblock"
	"github.com/capitalize-ai/chatstream/internal/fence"
	"github.com/capitalize-ai/chatstream/internal/markup"
	"github.com/capitalize-ai/chatstream/pkg/logger"
	"github.com/capitalize-ai/chatstream/pkg/metrics"
	"github.com/capitalize-ai/chatstream/pkg/tracing"
)

// DefaultReadSize is the chunk read size when Options.ReadSize is zero.
const DefaultReadSize = 4096

// ErrorPrefix starts the text shown and recorded for a failed stream.
const ErrorPrefix = "Error occurred: "

// Options configures Run.
type Options struct {
	// ReadSize is the buffer size of each body read.
	ReadSize int
	// Lock guards the view while it is mutated. Observers rendering the
	// view from other goroutines must hold it too.
	Lock sync.Locker
	// OnUpdate is called after each processed chunk and at the end.
	OnUpdate func(Update)
	// Model labels token metrics.
	Model  string
	Logger *logger.Logger
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// renderer applies StreamState transitions to a View.
type renderer struct {
	st   StreamState
	view *View
	log  *logger.Logger

	text *html.Node
	code *codeblock.Block
}

// Run reads body until EOF, the stop sentinel, cancellation or a read
// error, rendering into view as chunks arrive. It never returns with the
// view in a partial state: every outcome, including errors, leaves the
// view finalized.
func Run(ctx context.Context, body io.Reader, view *View, cancel *Cancel, opts Options) Outcome {
	if opts.ReadSize <= 0 {
		opts.ReadSize = DefaultReadSize
	}
	if opts.Lock == nil {
		opts.Lock = nopLocker{}
	}
	log := opts.Logger.OrNop()

	ctx, span := tracing.Tracer().Start(ctx, "stream.Run")
	defer span.End()

	started := time.Now()
	if body == nil {
		span.SetStatus(codes.Error, ErrNoBody.Error())
		return fail(view, ErrNoBody, opts, 0, started)
	}

	r := &renderer{view: view, log: log}
	buf := make([]byte, opts.ReadSize)
	chunks := 0
	state := Streaming

	for state == Streaming {
		if cancel.Cancelled() || ctx.Err() != nil {
			state = Cancelled
			break
		}

		n, err := body.Read(buf)
		if n > 0 {
			chunks++
			opts.Lock.Lock()
			r.feed(buf[:n])
			update := r.update(Streaming, chunks, opts.OnUpdate != nil)
			opts.Lock.Unlock()
			if opts.OnUpdate != nil {
				opts.OnUpdate(update)
			}
		}

		switch {
		case r.st.stopped && (!trailerPending(r.st.trailer) || err != nil):
			state = Completed
		case errors.Is(err, io.EOF):
			state = Completed
		case err != nil && ctx.Err() != nil:
			state = Cancelled
		case err != nil:
			log.Error("stream read failed", zap.Error(err), zap.Int("chunks", chunks))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fail(view, fmt.Errorf("read stream: %w", err), opts, chunks, started)
		}
	}

	if r.st.stopped {
		state = Completed
	}

	opts.Lock.Lock()
	r.finish()
	content := r.st.Buffer
	view.Complete(content)
	update := r.update(state, chunks, opts.OnUpdate != nil)
	opts.Lock.Unlock()
	if opts.OnUpdate != nil {
		opts.OnUpdate(update)
	}

	out := Outcome{
		State:    state,
		Content:  content,
		Usage:    parseUsage(r.st.trailer),
		Chunks:   chunks,
		Duration: time.Since(started),
	}
	metrics.RecordStream(state.String(), out.Duration.Seconds(), chunks)
	if out.Usage != nil {
		metrics.RecordTokens(opts.Model, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	}

	span.SetAttributes(
		attribute.String("stream.state", state.String()),
		attribute.Int("stream.chunks", chunks),
		attribute.Int("stream.bytes", len(content)),
	)
	log.Info("stream finished",
		zap.String("state", state.String()),
		zap.Int("chunks", chunks),
		zap.Int("bytes", len(content)),
		zap.Bool("sentinel", r.st.stopped),
		zap.Duration("duration", out.Duration),
	)
	return out
}

// Fail renders err into view in place of any content and returns the
// errored outcome. The outcome content is the text shown.
func Fail(view *View, err error, opts Options) Outcome {
	return fail(view, err, opts, 0, time.Now())
}

func fail(view *View, err error, opts Options, chunks int, started time.Time) Outcome {
	if opts.Lock == nil {
		opts.Lock = nopLocker{}
	}
	msg := ErrorPrefix + err.Error()

	opts.Lock.Lock()
	view.Fail(msg)
	update := Update{State: Errored, Chunks: chunks}
	if opts.OnUpdate != nil {
		update.HTML = markup.Render(view.Root)
	}
	opts.Lock.Unlock()
	if opts.OnUpdate != nil {
		opts.OnUpdate(update)
	}

	d := time.Since(started)
	metrics.RecordStream(Errored.String(), d.Seconds(), chunks)
	return Outcome{State: Errored, Content: msg, Err: err, Chunks: chunks, Duration: d}
}

// Replay renders a complete stored response into view without touching
// metrics or observers. It returns the content as it would have been
// recorded.
func Replay(view *View, text string) string {
	r := &renderer{view: view, log: logger.NewNop()}
	r.feed([]byte(text))
	r.finish()
	view.Complete(r.st.Buffer)
	return r.st.Buffer
}

func (r *renderer) update(state State, chunks int, withHTML bool) Update {
	u := Update{State: state, Chunks: chunks}
	if withHTML {
		u.HTML = markup.Render(r.view.Root)
	}
	return u
}

// feed appends a chunk and renders as far as the text is settled.
func (r *renderer) feed(p []byte) {
	if r.st.stopped {
		r.st.trailer = append(r.st.trailer, p...)
		return
	}

	r.st.Buffer += string(p)
	if i := strings.Index(r.st.Buffer, Sentinel); i >= 0 {
		r.st.trailer = append(r.st.trailer, r.st.Buffer[i+len(Sentinel):]...)
		r.st.Buffer = r.st.Buffer[:i]
		r.st.stopped = true
		r.log.Debug("stop sentinel received", zap.Int("offset", i))
		return
	}
	r.advance(holdBack(r.st.Buffer))
}

// advance consumes every fence event up to limit, then re-renders the open
// segment up to the settled position.
func (r *renderer) advance(limit int) {
	text := r.st.Buffer
	for {
		ev := r.st.det.Scan(text, limit)
		switch ev.Kind {
		case fence.Start:
			r.renderText(text[r.st.Cursor:ev.Index])
			r.text = nil
			r.st.Cursor = ev.Index
			r.log.Debug("code fence opened", zap.Int("index", ev.Index))

		case fence.Language:
			r.openCode(ev.Language)
			r.st.Cursor = ev.Index + 1

		case fence.End:
			r.code.SetText(trimBody(text[r.st.Cursor:ev.Index]))
			r.code = nil
			r.st.Language = ""
			r.st.Cursor = ev.Index + len(fence.Marker)
			r.log.Debug("code fence closed", zap.Int("index", ev.Index))

		default:
			r.renderOpen(r.st.det.Settled())
			return
		}
	}
}

func (r *renderer) renderOpen(end int) {
	if end > len(r.st.Buffer) {
		end = len(r.st.Buffer)
	}
	if end < r.st.Cursor {
		return
	}
	seg := r.st.Buffer[r.st.Cursor:end]
	switch {
	case r.st.det.InCode:
		r.code.SetText(trimBody(seg))
	case r.st.det.Awaiting():
	default:
		r.renderText(seg)
	}
}

// finish scans what is left, applies the end-of-stream cut and closes any
// open block.
func (r *renderer) finish() {
	r.advance(len(r.st.Buffer))

	text := r.st.Buffer
	cut := r.st.det.IncompleteTail(text)
	if r.st.det.Awaiting() {
		if lang := r.st.det.PendingLanguage(text); lang != "" {
			r.openCode(lang)
			cut = len(text)
		}
	} else {
		r.renderOpen(cut)
	}

	r.st.Buffer = text[:cut]
	if r.st.Cursor > cut {
		r.st.Cursor = cut
	}
	r.text = nil
	r.code = nil
	r.st.det.Reset()
}

func (r *renderer) openCode(language string) {
	r.code = codeblock.Create(language)
	r.st.Language = r.code.Language
	r.view.addBlock(r.code)
	metrics.CodeBlocksTotal.Inc()
	r.log.Debug("code block started", zap.String("language", language))
}

// renderText rebuilds the current text container from seg. Containers are
// only created once there is something visible to put in them.
func (r *renderer) renderText(seg string) {
	if r.text == nil {
		if strings.TrimSpace(seg) == "" {
			return
		}
		r.text = markup.Element(atom.Div, "w-full")
		r.view.Append(r.text)
	}
	markup.Markdown(r.text, seg)
}

func trimBody(s string) string {
	return strings.Trim(s, "\r\n")
}
