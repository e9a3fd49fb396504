package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/capitalize-ai/chatstream/internal/model"
)

var errNoChatStarted = errors.New("missing required data for saving chat: chat_started")

// Name identifies the sink in logs and metrics.
func (c *Client) Name() string {
	return "http"
}

// Save posts the transcript as a form to the save endpoint.
func (c *Client) Save(ctx context.Context, rec *model.ChatRecord) error {
	if rec.ChatStarted == "" {
		return errNoChatStarted
	}
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	form := url.Values{}
	form.Set("chat_started", rec.ChatStarted)
	form.Set("messages", string(messages))
	if rec.Username != "" {
		form.Set("username", rec.Username)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.opts.SavePath), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
