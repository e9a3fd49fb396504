package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/internal/stream"
)

type fakeUploader struct {
	result *model.UploadResult
	err    error
	names  []string
}

func (u *fakeUploader) Upload(_ context.Context, filename string, r io.Reader) (*model.UploadResult, error) {
	u.names = append(u.names, filename)
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	return u.result, u.err
}

func TestUploadTextFileExtendsSystemMessage(t *testing.T) {
	f := newFixture(t)
	f.uploader.result = &model.UploadResult{
		Status:   model.UploadStatusOK,
		FileID:   "abc",
		Filename: "notes.txt",
		FileType: "txt",
		Content:  "the notes",
	}

	res, out, err := f.session.Upload(context.Background(), "notes.txt", strings.NewReader("raw"), nil)
	require.NoError(t, err)
	require.Nil(t, out)
	require.True(t, res.OK())
	require.Equal(t, StatusUploaded, f.session.Status())

	sys := f.session.Messages()[0]
	require.Equal(t, "You are helpful.\n\nUsing context from file: notes.txt\n\nthe notes", sys.Content.String())
	require.Len(t, sys.Attachments, 1)
	require.Equal(t, model.Attachment{
		Type:      model.AttachmentFile,
		ID:        "abc",
		Name:      "notes.txt",
		FileType:  "txt",
		Timestamp: sys.Attachments[0].Timestamp,
	}, sys.Attachments[0])
	require.NotZero(t, sys.Attachments[0].Timestamp)

	require.Equal(t, 1, f.sink.count())
	require.Equal(t, model.EventTypeUpload, f.events.events[0].Type)
	require.Contains(t, f.session.HTML(), `href="/download_file/abc"`)

	_, _, err = f.session.Upload(context.Background(), "notes.txt", strings.NewReader("raw"), nil)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(f.session.HTML(), `data-file-id="abc"`))
	require.Len(t, f.session.Messages()[0].Attachments, 2)
	require.Len(t, f.session.Attachments(), 2)
}

func TestUploadImageStartsStream(t *testing.T) {
	f := newFixture(t)
	f.producer.reply = "A cat."
	f.uploader.result = &model.UploadResult{
		Status:      model.UploadStatusOK,
		FileID:      "img1",
		Filename:    "cat.JPG",
		FileType:    "JPG",
		Base64Image: "QUJD",
	}

	_, out, err := f.session.Upload(context.Background(), "cat.JPG", strings.NewReader("jpeg"), nil)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, stream.Completed, out.State)

	msgs := f.session.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "You are helpful.", msgs[0].Content.String())
	require.True(t, msgs[1].Content.IsParts())
	require.Equal(t, "data:image/jpeg;base64,QUJD", msgs[1].Content.Parts[1].ImageURL.URL)
	require.Equal(t, "A cat.", msgs[2].Content.String())

	req := f.producer.last()
	require.True(t, req.Messages[1].Content.IsParts())
	require.Contains(t, f.session.HTML(), `src="data:image/jpeg;base64,QUJD"`)
}

func TestUploadFailures(t *testing.T) {
	f := newFixture(t)

	f.uploader.err = errors.New("connection refused")
	_, _, err := f.session.Upload(context.Background(), "a.pdf", strings.NewReader("x"), nil)
	require.Error(t, err)
	require.Equal(t, "Upload error: connection refused", f.session.Status())

	f.uploader.err = nil
	f.uploader.result = &model.UploadResult{Status: "error", Message: "too large"}
	_, _, err = f.session.Upload(context.Background(), "a.pdf", strings.NewReader("x"), nil)
	require.Error(t, err)
	require.Equal(t, "Upload failed: too large", f.session.Status())

	require.Len(t, f.session.Messages(), 1)
	require.Empty(t, f.session.Messages()[0].Attachments)
	require.Zero(t, f.sink.count())
}

func TestUploadWithoutUploader(t *testing.T) {
	s := NewSession(Config{}, Deps{Producer: &fakeProducer{}})
	defer s.Close()
	_, _, err := s.Upload(context.Background(), "x", strings.NewReader(""), nil)
	require.Error(t, err)
}
