package middleware

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxContentLength bounds a single user message.
const MaxContentLength = 100000

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateChatID validates a chat ID.
func ValidateChatID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid chat ID format")
	}
	return nil
}

// ValidateUsername validates a username.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return errors.New("username cannot be empty")
	}
	if len(name) > 64 {
		return errors.New("username exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("username must be valid UTF-8")
	}
	return nil
}

// ValidateFilename validates an uploaded file name.
func ValidateFilename(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return errors.New("invalid file name")
	}
	if len(name) > 255 {
		return errors.New("file name exceeds maximum length")
	}
	return nil
}
