package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every configurable piece of the engine.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Conn      ConnConfig
	Assistant AssistantConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	conn, err := loadConnConfig()
	if err != nil {
		return nil, err
	}

	assistant, err := loadAssistantConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Store: store, Conn: conn, Assistant: assistant}, nil
}

// ServerConfig describes the HTTP bridge listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StoreConfig locates the on-disk stores.
type StoreConfig struct {
	// ProfilesPath is the server profile JSON file.
	ProfilesPath string
	// HistoryPath is the SQLite message archive.
	HistoryPath string
}

func loadStoreConfig() (StoreConfig, error) {
	dataDir := strings.TrimSpace(os.Getenv("DEADHOP_DATA_DIR"))
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return StoreConfig{}, fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".deadhop")
	}

	return StoreConfig{
		ProfilesPath: getEnvOrDefault("DEADHOP_PROFILES", filepath.Join(dataDir, "servers.json")),
		HistoryPath:  getEnvOrDefault("DEADHOP_HISTORY_DB", filepath.Join(dataDir, "history.db")),
	}, nil
}

// ConnConfig tunes connection behavior shared by every session.
type ConnConfig struct {
	// MaxAttempts bounds consecutive failed reconnects, zero retries
	// forever.
	MaxAttempts int
	// MessageRate and MessageBurst throttle outbound traffic.
	MessageRate  float64
	MessageBurst int
	// PingInterval is the idle keepalive period.
	PingInterval time.Duration
}

func loadConnConfig() (ConnConfig, error) {
	cfg := ConnConfig{}

	if v, err := parseOptionalIntEnv("IRC_MAX_RECONNECT_ATTEMPTS"); err != nil {
		return ConnConfig{}, err
	} else if v != nil {
		cfg.MaxAttempts = *v
	}

	if v, err := parseOptionalFloatEnv("IRC_MESSAGE_RATE"); err != nil {
		return ConnConfig{}, err
	} else if v != nil {
		cfg.MessageRate = *v
	}

	if v, err := parseOptionalIntEnv("IRC_MESSAGE_BURST"); err != nil {
		return ConnConfig{}, err
	} else if v != nil {
		cfg.MessageBurst = *v
	}

	if v, err := parseOptionalIntEnv("IRC_PING_INTERVAL_SECONDS"); err != nil {
		return ConnConfig{}, err
	} else if v != nil {
		cfg.PingInterval = time.Duration(*v) * time.Second
	}

	return cfg, nil
}

// AssistantConfig describes the chat-model backing the assistant.
type AssistantConfig struct {
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
}

// Enabled reports whether the required credentials are present.
func (c AssistantConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AssistantConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("assistant credentials missing: set ARK_API_KEY plus ARK_MODEL, or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAssistantConfig() (AssistantConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AssistantConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AssistantConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AssistantConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AssistantConfig{}, err
	}

	return AssistantConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
