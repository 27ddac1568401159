// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Planner PlannerConfig `mapstructure:"planner" yaml:"planner"`
	Page    PageConfig    `mapstructure:"page" yaml:"page"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PlannerMode selects how the engine reaches its planning service.
type PlannerMode string

const (
	// ModeOpenAI calls the OpenAI chat-completions API in process.
	ModeOpenAI PlannerMode = "openai"
	// ModeRemote forwards plan requests to a running docent server.
	ModeRemote PlannerMode = "remote"
)

// PlannerConfig configures the planning-service client. APIKey and Model are
// required in openai mode; their absence is surfaced as a user-facing
// configuration message at engine construction, never a crash.
type PlannerConfig struct {
	Mode        PlannerMode   `mapstructure:"mode" yaml:"mode"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	RemoteURL   string        `mapstructure:"remote_url" yaml:"remote_url"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// Configured reports whether the credential inputs required for openai mode
// are present.
func (p PlannerConfig) Configured() bool {
	return p.APIKey != "" && p.Model != ""
}

// PageConfig describes the document the engine hosts.
type PageConfig struct {
	// Path is the HTML file loaded into the document host. Empty means the
	// embedded demo page.
	Path string `mapstructure:"path" yaml:"path"`
	// URL is the display URL stamped onto snapshots.
	URL string `mapstructure:"url" yaml:"url"`
	// ControlSurface is the selector rooting the assistant's own overlay,
	// excluded from all resolution targets.
	ControlSurface string `mapstructure:"control_surface" yaml:"control_surface"`
}

// EngineConfig tunes the conversation loop.
type EngineConfig struct {
	MaxActionsPerTurn int `mapstructure:"max_actions_per_turn" yaml:"max_actions_per_turn"`
	TranscriptWindow  int `mapstructure:"transcript_window" yaml:"transcript_window"`
	PlannerWindow     int `mapstructure:"planner_window" yaml:"planner_window"`
	HighlightMs       int `mapstructure:"highlight_ms" yaml:"highlight_ms"`
	ViewportWidth     int `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr renders the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "docent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Planner --
	v.SetDefault("planner.mode", string(ModeOpenAI))
	v.SetDefault("planner.model", "gpt-4o-mini")
	v.SetDefault("planner.base_url", "")
	v.SetDefault("planner.remote_url", "http://127.0.0.1:8321")
	v.SetDefault("planner.temperature", 0.2)
	v.SetDefault("planner.max_tokens", 600)
	v.SetDefault("planner.api_timeout", "45s")

	// -- Page --
	v.SetDefault("page.path", "")
	v.SetDefault("page.url", "http://localhost:8321/")
	v.SetDefault("page.control_surface", "#docent-widget")

	// -- Engine --
	v.SetDefault("engine.max_actions_per_turn", 3)
	v.SetDefault("engine.transcript_window", 40)
	v.SetDefault("engine.planner_window", 12)
	v.SetDefault("engine.highlight_ms", 2600)
	v.SetDefault("engine.viewport_width", 1280)
	v.SetDefault("engine.viewport_height", 800)

	// -- Server --
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8321)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.shutdown_timeout", "10s")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data. OPENAI_API_KEY is
	// accepted as a fallback so the binary works in a stock OpenAI setup.
	v.BindEnv("planner.api_key", "DOCENT_PLANNER_API_KEY", "OPENAI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// Planner credentials are deliberately not checked here; their absence is a
// runtime condition with its own user-facing message.
func (c *Config) Validate() error {
	switch c.Planner.Mode {
	case ModeOpenAI, ModeRemote:
	default:
		return fmt.Errorf("planner.mode must be %q or %q, got %q", ModeOpenAI, ModeRemote, c.Planner.Mode)
	}
	if c.Planner.Mode == ModeRemote && c.Planner.RemoteURL == "" {
		return fmt.Errorf("planner.remote_url is required in remote mode")
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		return fmt.Errorf("server.rate_limit and server.rate_burst must be positive")
	}
	return nil
}

// Validate checks the loop settings.
func (e *EngineConfig) Validate() error {
	if e.MaxActionsPerTurn <= 0 {
		return fmt.Errorf("max_actions_per_turn must be positive")
	}
	if e.PlannerWindow <= 0 {
		return fmt.Errorf("planner_window must be positive")
	}
	// The transcript keeps more context than the planner ever sees.
	if e.TranscriptWindow < e.PlannerWindow {
		return fmt.Errorf("transcript_window (%d) must be at least planner_window (%d)", e.TranscriptWindow, e.PlannerWindow)
	}
	if e.HighlightMs <= 0 {
		return fmt.Errorf("highlight_ms must be positive")
	}
	if e.ViewportWidth <= 0 || e.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive")
	}
	return nil
}
