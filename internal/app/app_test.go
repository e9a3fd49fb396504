package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chatstream/internal/config"
	"github.com/capitalize-ai/chatstream/internal/llm"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BackendURL:     "http://backend.test",
		Producer:       config.ProducerBackend,
		Sinks:          []string{config.SinkHTTP},
		SQLitePath:     filepath.Join(t.TempDir(), "chats.db"),
		SelectedModel:  "gpt-4o",
		ModelProvider:  "openai",
		SystemMessage:  "sys",
		Username:       "ada",
		DownloadPath:   "/download_file/",
		StreamReadSize: 64,
	}
}

func TestBackendProducerAndSinks(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Sinks = []string{config.SinkHTTP, config.SinkSQLite}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	deps := a.Deps()
	require.Same(t, a.Backend, deps.Producer)
	require.Same(t, a.Backend, deps.Uploader)
	require.Len(t, deps.Sinks, 2)
	require.Equal(t, "http", deps.Sinks[0].Name())
	require.Equal(t, "sqlite", deps.Sinks[1].Name())
	require.NotNil(t, a.Store)
	require.Nil(t, deps.Events)

	cc := a.ChatConfig()
	require.Equal(t, "gpt-4o", cc.Model.Model)
	require.Equal(t, "ada", cc.Username)
	require.Equal(t, 64, cc.ReadSize)
}

func TestLLMProducer(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Producer = config.ProducerOpenAI
	cfg.OpenAIAPIKey = "sk-test"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	p, ok := a.Deps().Producer.(*llm.Producer)
	require.True(t, ok)
	require.Equal(t, "openai", p.Name())
}

func TestConfigErrors(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Producer = config.ProducerAnthropic
	_, err := New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "API key is required")

	cfg = baseConfig(t)
	cfg.Producer = "carrier-pigeon"
	_, err = New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unknown producer")

	cfg = baseConfig(t)
	cfg.Sinks = []string{"s3"}
	_, err = New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unknown sink")
}
