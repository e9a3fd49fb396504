package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatstream/internal/chat"
	"github.com/capitalize-ai/chatstream/internal/middleware"
	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/internal/stream"
	"github.com/capitalize-ai/chatstream/pkg/logger"
	"github.com/capitalize-ai/chatstream/pkg/metrics"
)

// SSE event names.
const (
	EventUserMessage = "user_message"
	EventRender      = "render"
	EventFile        = "file"
	EventDone        = "done"
	EventError       = "error"
)

// stateUploaded is the done state of an upload that streamed nothing.
const stateUploaded = "uploaded"

// maxUploadMemory is the multipart memory limit; larger files spill to disk.
const maxUploadMemory = 32 << 20

// StreamHandler handles the streaming endpoints of a chat.
type StreamHandler struct {
	registry *chat.Registry
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(registry *chat.Registry, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		registry: registry,
		logger:   log.OrNop(),
	}
}

// renderSender forwards orchestrator updates as render events.
func renderSender(w http.ResponseWriter, flusher http.Flusher) chat.UpdateFunc {
	return func(u stream.Update) {
		sendSSEEvent(w, flusher, EventRender, &model.RenderEvent{
			HTML:  u.HTML,
			State: u.State.String(),
		})
	}
}

// finish sends the terminal event of a stream.
func finish(w http.ResponseWriter, flusher http.Flusher, out stream.Outcome) {
	if out.State == stream.Errored {
		msg := "stream failed"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		sendSSEEvent(w, flusher, EventError, &model.ErrorEvent{
			Code:    "stream_error",
			Message: msg,
		})
		return
	}

	sendSSEEvent(w, flusher, EventDone, &model.DoneEvent{
		State:   out.State.String(),
		Content: out.Content,
		Usage:   out.Usage,
	})
}

// Send handles POST /api/v1/chats/{id}/messages
// It streams the assistant response as server-sent events.
func (h *StreamHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := session(w, r, h.registry)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.Busy() {
		writeError(w, http.StatusConflict, chat.ErrBusy.Error())
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, EventUserMessage, model.NewMessage(model.RoleUser, req.Content))

	out, err := s.Submit(ctx, req.Content, renderSender(w, flusher))
	if err != nil {
		code := "submit_error"
		if errors.Is(err, chat.ErrBusy) {
			code = "busy"
		}
		sendSSEEvent(w, flusher, EventError, &model.ErrorEvent{Code: code, Message: err.Error()})
		return
	}

	h.logger.Debug("response streamed",
		zap.String("chat_id", s.ID),
		zap.String("state", out.State.String()),
		zap.Int("chunks", out.Chunks),
		zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
	)
	finish(w, flusher, out)
}

// Stop handles POST /api/v1/chats/{id}/stop
func (h *StreamHandler) Stop(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r, h.registry)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"stopped": s.Stop(),
	})
}

// Upload handles POST /api/v1/chats/{id}/files
// The file event is sent once the file is attached; image uploads then
// stream the response to the picture.
func (h *StreamHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := session(w, r, h.registry)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	if err := middleware.ValidateFilename(header.Filename); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.Busy() {
		writeError(w, http.StatusConflict, chat.ErrBusy.Error())
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	fileSent := false
	sendFile := func() {
		if fileSent {
			return
		}
		fileSent = true
		atts := s.Attachments()
		if len(atts) == 0 {
			return
		}
		sendSSEEvent(w, flusher, EventFile, &model.FileEvent{
			Attachment: atts[len(atts)-1],
			HTML:       s.HTML(),
		})
	}
	render := renderSender(w, flusher)

	_, out, err := s.Upload(ctx, header.Filename, file, func(u stream.Update) {
		sendFile()
		render(u)
	})
	if err != nil {
		h.logger.Warn("upload failed",
			zap.String("chat_id", s.ID),
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		sendSSEEvent(w, flusher, EventError, &model.ErrorEvent{
			Code:    "upload_error",
			Message: err.Error(),
		})
		return
	}

	sendFile()
	if out == nil {
		sendSSEEvent(w, flusher, EventDone, &model.DoneEvent{State: stateUploaded})
		return
	}
	finish(w, flusher, *out)
}
