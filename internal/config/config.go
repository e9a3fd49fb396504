// Package config provides environment configuration for the gateway and CLI.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Producer names.
const (
	ProducerBackend   = "backend"
	ProducerOpenAI    = "openai"
	ProducerAnthropic = "anthropic"
)

// Sink names.
const (
	SinkHTTP   = "http"
	SinkNATS   = "nats"
	SinkSQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Backend endpoints
	BackendURL     string
	StreamPath     string
	SavePath       string
	UploadPath     string
	DownloadPath   string
	CSRFToken      string
	BackendTimeout time.Duration

	// Chat page inputs
	SelectedModel  string
	ModelProvider  string
	SystemMessage  string
	WelcomeMessage string
	Username       string

	// Producer selects where responses stream from.
	Producer        string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	MaxTokens       int

	// Sinks lists where transcripts are saved.
	Sinks      []string
	SQLitePath string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Rendering
	StreamReadSize int
	CopyRevert     time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),

		// Backend
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8000"),
		StreamPath:     getEnv("STREAM_PATH", "/chat/stream"),
		SavePath:       getEnv("SAVE_PATH", "/chat/save_chat"),
		UploadPath:     getEnv("UPLOAD_PATH", "/chat/upload"),
		DownloadPath:   getEnv("DOWNLOAD_PATH", "/download_file/"),
		CSRFToken:      getEnv("CSRF_TOKEN", ""),
		BackendTimeout: getDurationEnv("BACKEND_TIMEOUT", 0),

		// Chat
		SelectedModel:  getEnv("SELECTED_MODEL", "gpt-4o"),
		ModelProvider:  getEnv("MODEL_PROVIDER", ""),
		SystemMessage:  getEnv("SYSTEM_MESSAGE", "You are a helpful assistant."),
		WelcomeMessage: getEnv("WELCOME_MESSAGE", ""),
		Username:       getEnv("USERNAME", "anonymous"),

		// Producer
		Producer:        strings.ToLower(getEnv("PRODUCER", ProducerBackend)),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		MaxTokens:       getIntEnv("MAX_TOKENS", 4096),

		// Sinks
		Sinks:      getListEnv("SINKS", []string{SinkHTTP}),
		SQLitePath: getEnv("SQLITE_PATH", "data/chats.db"),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Rendering
		StreamReadSize: getIntEnv("STREAM_READ_SIZE", 4096),
		CopyRevert:     getDurationEnv("COPY_REVERT", 2*time.Second),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// HasSink reports whether name is one of the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv reads a comma separated list. Blank entries are dropped.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
