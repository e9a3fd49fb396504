package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/internal/stream"
	"github.com/capitalize-ai/chatstream/pkg/metrics"
)

// Upload status texts.
const (
	StatusUploading = "Uploading..."
	StatusUploaded  = "Upload"
)

// ContextHeader introduces file text appended to the system message.
const ContextHeader = "\n\nUsing context from file: %s\n\n%s"

var errNoUploader = errors.New("uploads are not configured")

// Upload sends a file and records it on the system message. Text files
// extend the system message with their content. Images become a user
// message carrying the picture and a response is streamed for it; its
// outcome is returned.
func (s *Session) Upload(ctx context.Context, filename string, r io.Reader, onUpdate UpdateFunc) (*model.UploadResult, *stream.Outcome, error) {
	if s.deps.Uploader == nil {
		return nil, nil, errNoUploader
	}
	s.setStatus(StatusUploading)

	res, err := s.deps.Uploader.Upload(ctx, filename, r)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("unknown", "error").Inc()
		s.setStatus("Upload error: " + err.Error())
		return nil, nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	if !res.OK() {
		metrics.UploadsTotal.WithLabelValues("unknown", "rejected").Inc()
		s.setStatus("Upload failed: " + res.Message)
		return res, nil, fmt.Errorf("upload %s rejected: %s", filename, res.Message)
	}

	kind := "file"
	if res.IsImage() {
		kind = "image"
	}
	metrics.UploadsTotal.WithLabelValues(kind, "ok").Inc()

	name := res.Filename
	if name == "" {
		name = filename
	}
	att := model.Attachment{
		Type:      model.AttachmentFile,
		ID:        res.FileID,
		Name:      name,
		FileType:  res.FileType,
		Timestamp: time.Now().Unix(),
	}

	s.mu.Lock()
	s.transcript.AddAttachment(att)
	if !res.IsImage() {
		s.transcript.AppendContext(fmt.Sprintf(ContextHeader, name, res.Content))
	}
	s.showBanner(att)
	s.status = StatusUploaded
	s.mu.Unlock()

	s.persist(ctx)
	s.publish(ctx, model.EventTypeUpload, "", map[string]any{
		"file_id":   att.ID,
		"file_type": att.FileType,
	})
	s.log.Info("file attached",
		zap.String("file_id", att.ID),
		zap.String("file_type", att.FileType),
	)

	if !res.IsImage() {
		return res, nil, nil
	}

	msg := model.Message{
		Role: model.RoleUser,
		Content: model.PartsContent(
			model.TextPart("Uploaded image: "+name),
			model.ImagePart(res.ImageDataURL()),
		),
	}
	out, err := s.submit(ctx, msg, onUpdate)
	if err != nil {
		return res, nil, err
	}
	return res, &out, nil
}

func (s *Session) setStatus(text string) {
	s.mu.Lock()
	s.status = text
	s.mu.Unlock()
}
