package stream

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/chatstream/internal/model"
)

// Sentinel marks early termination of a response. It may be followed by a
// JSON usage object or null.
const Sentinel = "###STOP###"

// maxTrailer bounds how much is read after the sentinel while waiting for
// the rest of a usage object.
const maxTrailer = 4096

// holdBack returns the prefix length of text that may be scanned now. A
// suffix that could still grow into the sentinel, or an incomplete UTF-8
// sequence, waits for the next chunk.
func holdBack(text string) int {
	limit := len(text)
	for n := len(Sentinel) - 1; n > 0; n-- {
		if strings.HasSuffix(text, Sentinel[:n]) {
			limit -= n
			break
		}
	}

	for i, k := limit-1, 0; i >= 0 && k < utf8.UTFMax; i, k = i-1, k+1 {
		if utf8.RuneStart(text[i]) {
			if !utf8.FullRuneInString(text[i:limit]) {
				limit = i
			}
			break
		}
	}
	return limit
}

// trailerPending reports whether more bytes should be read after the
// sentinel. Only an unfinished JSON object or null keeps the stream open;
// nothing at all, a complete value or anything else ends it.
func trailerPending(trailer []byte) bool {
	t := bytes.TrimSpace(trailer)
	if len(t) == 0 || len(t) >= maxTrailer || json.Valid(t) {
		return false
	}
	return t[0] == '{' || bytes.HasPrefix([]byte("null"), t)
}

// parseUsage decodes the usage trailer. Missing, null or malformed
// trailers yield nil.
func parseUsage(trailer []byte) *model.Usage {
	t := bytes.TrimSpace(trailer)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil
	}
	var u model.Usage
	if err := json.Unmarshal(t, &u); err != nil {
		return nil
	}
	return &u
}
