// Package backend talks to the chat web backend: the streaming endpoint,
// the transcript save endpoint and the file upload endpoint.
package backend

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/capitalize-ai/chatstream/pkg/logger"
)

// ErrUpload is returned when the upload endpoint answers with something
// other than an upload result.
var ErrUpload = errors.New("upload failed")

// CSRFHeader carries the page CSRF token on every request.
const CSRFHeader = "X-CSRFToken"

// Options configures a Client.
type Options struct {
	BaseURL    string
	StreamPath string
	SavePath   string
	UploadPath string
	CSRFToken  string
	// Timeout bounds save and upload calls. Streams are not bounded.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client implements the stream producer, the save sink and the uploader
// against one backend.
type Client struct {
	opts Options
	http *http.Client
	log  *logger.Logger
}

// New creates a backend client.
func New(opts Options) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.StreamPath == "" {
		opts.StreamPath = "/chat/stream"
	}
	if opts.SavePath == "" {
		opts.SavePath = "/chat/save_chat"
	}
	if opts.UploadPath == "" {
		opts.UploadPath = "/chat/upload"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{opts: opts, http: hc, log: opts.Logger.OrNop()}
}

func (c *Client) url(path string) string {
	return c.opts.BaseURL + path
}

func (c *Client) setHeaders(req *http.Request) {
	if c.opts.CSRFToken != "" {
		req.Header.Set(CSRFHeader, c.opts.CSRFToken)
	}
}

// statusError reads a short excerpt of a failed response.
func statusError(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(excerpt))
	if msg == "" {
		return fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}
	return fmt.Errorf("HTTP error! status: %d: %s", resp.StatusCode, msg)
}
