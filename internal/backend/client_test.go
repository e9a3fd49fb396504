package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chatstream/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", CSRFToken: "tok"})
}

func TestStream(t *testing.T) {
	var got model.StreamRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/stream", r.URL.Path)
		require.Equal(t, "tok", r.Header.Get(CSRFHeader))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		flusher := w.(http.Flusher)
		_, _ = io.WriteString(w, "Hello ")
		flusher.Flush()
		_, _ = io.WriteString(w, "world###STOP###null")
	})

	req := &model.StreamRequest{
		Messages: []model.Message{
			model.NewMessage(model.RoleSystem, "sys"),
			model.NewMessage(model.RoleUser, "hi"),
		},
		Model: model.ModelRef{Model: "gpt-4o"},
	}
	body, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "Hello world###STOP###null", string(data))
	require.Len(t, got.Messages, 2)
	require.Equal(t, "gpt-4o", got.Model.Model)
}

func TestStreamStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	body, err := c.Stream(context.Background(), &model.StreamRequest{})
	require.Nil(t, body)
	require.EqualError(t, err, "HTTP error! status: 502: nope")
}

func TestSave(t *testing.T) {
	var form map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/save_chat", r.URL.Path)
		require.Equal(t, "tok", r.Header.Get(CSRFHeader))
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"chat_started": r.PostForm.Get("chat_started"),
			"messages":     r.PostForm.Get("messages"),
			"username":     r.PostForm.Get("username"),
		}
		_, _ = io.WriteString(w, "saved")
	})

	err := c.Save(context.Background(), &model.ChatRecord{
		Username:    "alice",
		ChatStarted: "1700000000",
		Messages:    []model.Message{model.NewMessage(model.RoleSystem, "sys")},
	})
	require.NoError(t, err)
	require.Equal(t, "1700000000", form["chat_started"])
	require.Equal(t, "alice", form["username"])
	require.JSONEq(t, `[{"role":"system","content":"sys"}]`, form["messages"])
	require.Equal(t, "http", c.Name())
}

func TestSaveRequiresChatStarted(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:0"})
	require.Error(t, c.Save(context.Background(), &model.ChatRecord{}))
}

func TestSaveStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := c.Save(context.Background(), &model.ChatRecord{ChatStarted: "1"})
	require.EqualError(t, err, "HTTP error! status: 500")
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/upload", r.URL.Path)
		require.Equal(t, "tok", r.Header.Get(CSRFHeader))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)

		require.NoError(t, json.NewEncoder(w).Encode(model.UploadResult{
			Status:   model.UploadStatusOK,
			FileID:   "id-1",
			Filename: hdr.Filename,
			FileType: "txt",
			Content:  strings.ToUpper(string(data)),
		}))
	})

	res, err := c.Upload(context.Background(), "notes.txt", strings.NewReader("some notes"))
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "id-1", res.FileID)
	require.Equal(t, "notes.txt", res.Filename)
	require.Equal(t, "SOME NOTES", res.Content)
}

func TestUploadRejectedResultIsReturned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":"error","message":"unsupported type"}`)
	})

	res, err := c.Upload(context.Background(), "x.exe", strings.NewReader("x"))
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, "unsupported type", res.Message)
}

func TestUploadGarbage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<html>oops</html>")
	})

	_, err := c.Upload(context.Background(), "x.txt", strings.NewReader("x"))
	require.True(t, errors.Is(err, ErrUpload))
}
