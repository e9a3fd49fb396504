package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHoldBack(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"plain", "hello", 5},
		{"one hash", "hello #", 6},
		{"sentinel prefix", "hello ###STO", 6},
		{"heading is not held past a letter", "# a", 3},
		{"partial rune", "caf\xc3", 3},
		{"complete rune", "café", 5},
		{"partial three byte rune", "ok \xe2\x9c", 3},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, holdBack(tt.text))
		})
	}
}

func TestParseUsage(t *testing.T) {
	require.Nil(t, parseUsage(nil))
	require.Nil(t, parseUsage([]byte(" null ")))
	require.Nil(t, parseUsage([]byte(" world")))

	u := parseUsage([]byte(`{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}`))
	require.Equal(t, 1, u.PromptTokens)
	require.Equal(t, 2, u.CompletionTokens)
	require.Equal(t, 3, u.TotalTokens)
}

func TestTrailerPending(t *testing.T) {
	tests := []struct {
		name    string
		trailer string
		want    bool
	}{
		{"empty", "", false},
		{"whitespace", " \n", false},
		{"partial object", `{"prompt_tokens":`, true},
		{"partial null", "nu", true},
		{"null", "null", false},
		{"object", `{"total_tokens":3}`, false},
		{"plain text", " world", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, trailerPending([]byte(tt.trailer)))
		})
	}
}

func TestCancelToken(t *testing.T) {
	var nilCancel *Cancel
	require.False(t, nilCancel.Cancelled())

	c := &Cancel{}
	require.False(t, c.Cancelled())
	c.Cancel()
	require.True(t, c.Cancelled())
	c.Reset()
	require.False(t, c.Cancelled())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "completed", Completed.String())
	require.True(t, Errored.Terminal())
	require.False(t, Streaming.Terminal())
}
