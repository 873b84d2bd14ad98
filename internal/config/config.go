// Package config provides application configuration.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Telegram update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds all application configuration.
type Config struct {
	HTTPAddr      string
	LogLevel      string
	LogFormat     string
	LogAddSource  bool
	ShutdownGrace time.Duration

	Telegram TelegramConfig
	Backend  BackendConfig
	Store    StoreConfig
	Broker   BrokerConfig
	Notify   NotifyConfig

	// ChatConcurrency bounds how many chats are handled at once.
	ChatConcurrency int
}

// TelegramConfig controls the chat platform connection.
type TelegramConfig struct {
	Token      string
	Mode       string
	WebhookURL string
}

// BackendConfig points at the task backend REST API.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StoreConfig selects and configures the session/ledger driver.
type StoreConfig struct {
	Driver        string // "redis", "sqlite" or "memory"
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	SQLitePath    string
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// BrokerConfig configures the AMQP subscription.
type BrokerConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
	Exchange string
	Queue    string
	Prefetch int
}

// NotifyConfig tunes the fan-out pipeline.
type NotifyConfig struct {
	DeadlineInterval time.Duration
	DeadlineWindow   time.Duration
	SessionCacheTTL  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		LogAddSource:  getEnvBool("LOG_ADD_SOURCE", false),
		ShutdownGrace: getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
		Telegram: TelegramConfig{
			Token:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			Mode:       strings.ToLower(getEnv("TELEGRAM_MODE", ModePolling)),
			WebhookURL: getEnv("TELEGRAM_WEBHOOK_URL", ""),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(getEnv("TASKMATE_API_URL", "http://backend_api:8000/api/v1"), "/"),
			Timeout: getEnvDuration("API_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", "redis")),
			RedisHost:     getEnv("VALKEY_HOST", "valkey"),
			RedisPort:     getEnvInt("VALKEY_PORT", 6379),
			RedisDB:       getEnvInt("VALKEY_DB", 1),
			RedisPassword: getEnv("VALKEY_PASSWORD", ""),
			SQLitePath:    getEnv("SQLITE_PATH", "./data/tmbot.db"),
			SessionTTL:    time.Duration(getEnvInt("SESSION_TTL_SECONDS", 604800)) * time.Second,
			SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
		Broker: BrokerConfig{
			Host:     getEnv("RABBITMQ_HOST", "rabbitmq"),
			Port:     getEnvInt("RABBITMQ_PORT", 5672),
			User:     getEnv("RABBITMQ_USER", "taskmate"),
			Password: getEnv("RABBITMQ_PASSWORD", "taskmate_secret"),
			VHost:    getEnv("RABBITMQ_VHOST", "/"),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "task_events"),
			Queue:    getEnv("RABBITMQ_QUEUE", "telegram_notifications"),
			Prefetch: getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		Notify: NotifyConfig{
			DeadlineInterval: time.Duration(getEnvInt("POLLING_INTERVAL_DEADLINES", 300)) * time.Second,
			DeadlineWindow:   getEnvDuration("DEADLINE_WINDOW", 30*time.Minute),
			SessionCacheTTL:  getEnvDuration("SESSION_CACHE_TTL", 60*time.Second),
		},
		ChatConcurrency: getEnvInt("CHAT_CONCURRENCY", 32),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN cannot be empty")
	}
	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return fmt.Errorf("TELEGRAM_WEBHOOK_URL is required in webhook mode")
		}
	default:
		return fmt.Errorf("TELEGRAM_MODE must be %q or %q", ModePolling, ModeWebhook)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("TASKMATE_API_URL cannot be empty")
	}
	switch c.Store.Driver {
	case "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be one of redis, sqlite, memory")
	}
	if c.Store.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be > 0")
	}
	if c.Broker.Prefetch <= 0 {
		return fmt.Errorf("RABBITMQ_PREFETCH must be > 0")
	}
	if c.Notify.DeadlineInterval <= 0 {
		return fmt.Errorf("POLLING_INTERVAL_DEADLINES must be > 0")
	}
	if c.Notify.DeadlineWindow <= 0 {
		return fmt.Errorf("DEADLINE_WINDOW must be > 0")
	}
	if c.ChatConcurrency <= 0 {
		return fmt.Errorf("CHAT_CONCURRENCY must be > 0")
	}
	return nil
}

// RedisAddr returns host:port for the key-value store.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.Store.RedisHost, strconv.Itoa(c.Store.RedisPort))
}

// AMQPURL builds the broker connection URL.
func (c *Config) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s/%s",
		url.QueryEscape(c.Broker.User),
		url.QueryEscape(c.Broker.Password),
		net.JoinHostPort(c.Broker.Host, strconv.Itoa(c.Broker.Port)),
		url.PathEscape(c.Broker.VHost),
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
