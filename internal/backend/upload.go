package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatstream/internal/model"
)

// Upload sends one file as the multipart field "file". A result whose
// status is not ok is returned as is; the caller decides how to show it.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.opts.UploadPath), pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	var res model.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: status %d", ErrUpload, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpload, err)
	}

	c.log.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("status", res.Status),
		zap.String("file_id", res.FileID),
	)
	return &res, nil
}
