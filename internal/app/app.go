// Package app wires configuration into chat collaborators.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatstream/internal/backend"
	"github.com/capitalize-ai/chatstream/internal/chat"
	"github.com/capitalize-ai/chatstream/internal/config"
	"github.com/capitalize-ai/chatstream/internal/llm"
	"github.com/capitalize-ai/chatstream/internal/model"
	natsclient "github.com/capitalize-ai/chatstream/internal/nats"
	"github.com/capitalize-ai/chatstream/internal/store"
	"github.com/capitalize-ai/chatstream/pkg/logger"
)

// App holds the collaborators built from a Config.
type App struct {
	Config  *config.Config
	Backend *backend.Client
	NATS    *natsclient.Client
	Store   *store.SQLite

	deps chat.Deps
	log  *logger.Logger
}

// New builds the producer, sinks and event publisher selected by cfg.
// NATS is only dialed when the nats sink is configured.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	log = log.OrNop()
	a := &App{
		Config: cfg,
		Backend: backend.New(backend.Options{
			BaseURL:    cfg.BackendURL,
			StreamPath: cfg.StreamPath,
			SavePath:   cfg.SavePath,
			UploadPath: cfg.UploadPath,
			CSRFToken:  cfg.CSRFToken,
			Timeout:    cfg.BackendTimeout,
			Logger:     log,
		}),
		log: log,
	}
	a.deps = chat.Deps{Uploader: a.Backend, Logger: log}

	producer, err := a.producer()
	if err != nil {
		return nil, err
	}
	a.deps.Producer = producer

	for _, name := range cfg.Sinks {
		sink, err := a.sink(ctx, name)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.deps.Sinks = append(a.deps.Sinks, sink)
	}

	log.Info("chat collaborators ready",
		zap.String("producer", cfg.Producer),
		zap.Strings("sinks", cfg.Sinks),
	)
	return a, nil
}

func (a *App) producer() (chat.Producer, error) {
	switch a.Config.Producer {
	case config.ProducerBackend, "":
		return a.Backend, nil
	case config.ProducerOpenAI:
		return a.llmProducer(llm.ProviderOpenAI, a.Config.OpenAIAPIKey)
	case config.ProducerAnthropic:
		return a.llmProducer(llm.ProviderAnthropic, a.Config.AnthropicAPIKey)
	default:
		return nil, fmt.Errorf("unknown producer %q", a.Config.Producer)
	}
}

func (a *App) llmProducer(provider llm.Provider, apiKey string) (chat.Producer, error) {
	client, err := llm.NewClient(provider, apiKey)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", provider, err)
	}
	return llm.NewProducer(client, a.Config.MaxTokens, a.log), nil
}

func (a *App) sink(ctx context.Context, name string) (chat.Sink, error) {
	switch name {
	case config.SinkHTTP:
		return a.Backend, nil
	case config.SinkSQLite:
		s, err := store.Open(a.Config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open chat history: %w", err)
		}
		a.Store = s
		return s, nil
	case config.SinkNATS:
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      a.Config.NATSURL,
			Name:     "chatstream",
			CAFile:   a.Config.NATSCAFile,
			CertFile: a.Config.NATSCertFile,
			KeyFile:  a.Config.NATSKeyFile,
			Token:    a.Config.NATSToken,
		}, a.log)
		if err != nil {
			return nil, err
		}
		a.NATS = nc

		streams := natsclient.NewStreamManager(nc)
		if err := streams.EnsureStream(ctx); err != nil {
			return nil, err
		}
		a.deps.Events = streams
		return streams, nil
	default:
		return nil, fmt.Errorf("unknown sink %q", name)
	}
}

// ChatConfig returns the session configuration.
func (a *App) ChatConfig() chat.Config {
	return chat.Config{
		Model: model.ModelRef{
			Model:    a.Config.SelectedModel,
			Provider: a.Config.ModelProvider,
		},
		SystemMessage:  a.Config.SystemMessage,
		WelcomeMessage: a.Config.WelcomeMessage,
		Username:       a.Config.Username,
		DownloadPath:   a.Config.DownloadPath,
		ReadSize:       a.Config.StreamReadSize,
		CopyRevert:     a.Config.CopyRevert,
	}
}

// Deps returns the session collaborators.
func (a *App) Deps() chat.Deps {
	return a.deps
}

// Close releases the store and the NATS connection.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Warn("close chat history", zap.Error(err))
		}
	}
	if a.NATS != nil {
		a.NATS.Close()
	}
}
