package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STREAM_PATH", "SINKS", "PRODUCER", "COPY_REVERT", "STREAM_READ_SIZE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, "/chat/stream", cfg.StreamPath)
	require.Equal(t, "/chat/save_chat", cfg.SavePath)
	require.Equal(t, "/chat/upload", cfg.UploadPath)
	require.Equal(t, "/download_file/", cfg.DownloadPath)
	require.Equal(t, ProducerBackend, cfg.Producer)
	require.Equal(t, []string{SinkHTTP}, cfg.Sinks)
	require.Equal(t, 4096, cfg.StreamReadSize)
	require.Equal(t, 2*time.Second, cfg.CopyRevert)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PRODUCER", "Anthropic")
	t.Setenv("SINKS", " http, SQLITE ,,nats")
	t.Setenv("STREAM_READ_SIZE", "16")
	t.Setenv("COPY_REVERT", "500ms")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg := Load()
	require.Equal(t, "9090", cfg.ServerPort)
	require.Equal(t, ProducerAnthropic, cfg.Producer)
	require.Equal(t, []string{SinkHTTP, SinkSQLite, SinkNATS}, cfg.Sinks)
	require.True(t, cfg.HasSink(SinkSQLite))
	require.False(t, cfg.HasSink("s3"))
	require.Equal(t, 16, cfg.StreamReadSize)
	require.Equal(t, 500*time.Millisecond, cfg.CopyRevert)
	require.True(t, cfg.TracingEnabled)
	require.Equal(t, 60, cfg.RateLimitRequests)
}

func TestListEnvOnlyCommas(t *testing.T) {
	t.Setenv("SINKS", " , ,")
	require.Equal(t, []string{SinkHTTP}, Load().Sinks)
}
