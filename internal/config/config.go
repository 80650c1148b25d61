// Package config loads focusflow settings from an optional YAML file and
// FOCUSFLOW_* environment variables.
package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	LLM       LLMConfig       `koanf:"llm"`
	Voice     VoiceConfig     `koanf:"voice"`
	Notify    NotifyConfig    `koanf:"notify"`
	Events    EventsConfig    `koanf:"events"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Logging   LoggingConfig   `koanf:"logging"`
	Tracking  TrackingConfig  `koanf:"tracking"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	StaticDir       string        `koanf:"static_dir"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// StorageConfig selects the repository backend: memory, sqlite, postgres or mongo.
type StorageConfig struct {
	Driver   string `koanf:"driver"`
	DSN      Secret `koanf:"dsn"`
	Database string `koanf:"database"`
}

type ScoringConfig struct {
	MLURL   string        `koanf:"ml_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type LLMConfig struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    Secret        `koanf:"api_key"`
	Model     string        `koanf:"model"`
	MaxTokens int           `koanf:"max_tokens"`
	Timeout   time.Duration `koanf:"timeout"`
}

type VoiceConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  Secret        `koanf:"api_key"`
	VoiceID string        `koanf:"voice_id"`
	ModelID string        `koanf:"model_id"`
	Timeout time.Duration `koanf:"timeout"`
}

type NotifyConfig struct {
	SMTPHost      string        `koanf:"smtp_host"`
	SMTPPort      int           `koanf:"smtp_port"`
	Username      string        `koanf:"username"`
	Password      Secret        `koanf:"password"`
	From          string        `koanf:"from"`
	FrontendURL   string        `koanf:"frontend_url"`
	DropThreshold float64       `koanf:"drop_threshold"`
	Timeout       time.Duration `koanf:"timeout"`
}

type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

type AnalyticsConfig struct {
	Timezone string `koanf:"timezone"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type TrackingConfig struct {
	LockIdleTTL time.Duration `koanf:"lock_idle_ttl"`
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:8080", "http://localhost:5173"}
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = "focusflow"
	}
	if cfg.Scoring.MLURL == "" {
		cfg.Scoring.MLURL = "http://localhost:5000"
	}
	if cfg.Scoring.Timeout == 0 {
		cfg.Scoring.Timeout = 3 * time.Second
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "openai/gpt-3.5-turbo"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 100
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 10 * time.Second
	}
	if cfg.Voice.BaseURL == "" {
		cfg.Voice.BaseURL = "https://api.elevenlabs.io/v1/text-to-speech"
	}
	if cfg.Voice.VoiceID == "" {
		cfg.Voice.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if cfg.Voice.ModelID == "" {
		cfg.Voice.ModelID = "eleven_monolingual_v1"
	}
	if cfg.Voice.Timeout == 0 {
		cfg.Voice.Timeout = 15 * time.Second
	}
	if cfg.Notify.SMTPPort == 0 {
		cfg.Notify.SMTPPort = 587
	}
	if cfg.Notify.From == "" {
		cfg.Notify.From = "noreply@focusflow.app"
	}
	if cfg.Notify.FrontendURL == "" {
		cfg.Notify.FrontendURL = "http://localhost:5173"
	}
	if cfg.Notify.DropThreshold == 0 {
		cfg.Notify.DropThreshold = 20
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 10 * time.Second
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "focusflow"
	}
	if cfg.Analytics.Timezone == "" {
		cfg.Analytics.Timezone = "Local"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracking.LockIdleTTL == 0 {
		cfg.Tracking.LockIdleTTL = time.Hour
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres", "mongo":
		if !c.Storage.DSN.IsSet() {
			return fmt.Errorf("storage dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Notify.DropThreshold < 0 || c.Notify.DropThreshold > 100 {
		return fmt.Errorf("notify drop_threshold must be within 0-100, got %v", c.Notify.DropThreshold)
	}
	if _, err := c.Analytics.Location(); err != nil {
		return fmt.Errorf("invalid analytics timezone: %w", err)
	}

	return nil
}

// Location resolves the timezone used for hour-of-day buckets.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
