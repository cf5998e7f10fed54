// Package config provides centralized configuration for the candle engine.
// Configuration is loaded in priority order: environment variables override a
// JSON file, which overrides built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"
)

// AppConfig is the complete application configuration.
type AppConfig struct {
	AppName    string `json:"app_name" env:"APP_NAME"`
	Version    string `json:"version" env:"VERSION"`
	ConfigPath string `json:"-" env:"CONFIG_PATH"`

	Provider  ProviderConfig  `json:"provider"`
	Validator ValidatorConfig `json:"validator"`
	Resample  ResampleConfig  `json:"resample"`
	Logging   LoggingConfig   `json:"logging"`
	Retry     RetryConfig     `json:"retry"`
}

// ProviderConfig configures the upstream data provider.
type ProviderConfig struct {
	BaseURL      string `json:"base_url" env:"PROVIDER_BASE_URL"`       // Provider API root
	APIKey       string `json:"api_key" env:"PROVIDER_API_KEY"`         // API key for authenticated requests
	RateLimit    int    `json:"rate_limit" env:"PROVIDER_RATE_LIMIT"`   // Requests per second
	Timeout      string `json:"timeout" env:"PROVIDER_TIMEOUT"`         // HTTP request timeout
	LookbackDays int    `json:"lookback_days" env:"PROVIDER_LOOKBACK"`  // Default fetch window in days
}

// ValidatorConfig configures fake print detection.
type ValidatorConfig struct {
	SpikeMultiplier  float64 `json:"spike_multiplier" env:"SPIKE_MULTIPLIER"`   // Range threshold vs rolling average
	VolumeMultiplier float64 `json:"volume_multiplier" env:"VOLUME_MULTIPLIER"` // Volume threshold vs rolling average
	MinVolume        int64   `json:"min_volume" env:"MIN_VOLUME"`               // Absolute liquidity floor
	Policy           string  `json:"policy" env:"CLEAN_POLICY"`                 // "drop" or "interpolate"
}

// ResampleConfig configures display timeframe defaults.
type ResampleConfig struct {
	DefaultTimeframe string `json:"default_timeframe" env:"DEFAULT_TIMEFRAME"` // e.g. "5m", "1h", "1d"
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string            `json:"level" env:"LOG_LEVEL"`             // debug, info, warn, error
	Format        string            `json:"format" env:"LOG_FORMAT"`           // json, text
	Output        string            `json:"output" env:"LOG_OUTPUT"`           // stdout, stderr, file
	FilePath      string            `json:"file_path" env:"LOG_FILE_PATH"`     // Log file path when output is "file"
	MaxSize       int               `json:"max_size" env:"LOG_MAX_SIZE"`       // Maximum log file size in MB
	MaxBackups    int               `json:"max_backups" env:"LOG_MAX_BACKUPS"` // Rotated file count
	MaxAge        int               `json:"max_age" env:"LOG_MAX_AGE"`         // Rotated file age in days
	Compress      bool              `json:"compress" env:"LOG_COMPRESS"`       // Compress rotated files
	ContextFields map[string]string `json:"context_fields"`                    // Attributes attached to every record
}

// RetryConfig configures the retry loop for provider calls.
type RetryConfig struct {
	MaxAttempts  int    `json:"max_attempts" env:"RETRY_MAX_ATTEMPTS"`
	InitialDelay string `json:"initial_delay" env:"RETRY_INITIAL_DELAY"`
	MaxDelay     string `json:"max_delay" env:"RETRY_MAX_DELAY"`
}

// Manager handles configuration loading and validation.
type Manager struct {
	config     *AppConfig
	configPath string
	logger     *slog.Logger
}

// NewManager creates a configuration manager. A nil logger falls back to
// slog.Default.
func NewManager(configPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		configPath: configPath,
		logger:     logger,
	}
}

// Load builds the configuration from defaults, then the JSON file if one
// exists, then environment variable overrides, and validates the result.
func (m *Manager) Load() (*AppConfig, error) {
	config := DefaultConfig()

	if m.configPath != "" {
		if err := m.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	m.loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	m.logger.Info("configuration loaded",
		"config_path", m.configPath,
		"provider_url", config.Provider.BaseURL,
		"default_timeframe", config.Resample.DefaultTimeframe,
		"log_level", config.Logging.Level)

	return config, nil
}

func (m *Manager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.logger.Debug("config file does not exist, using defaults", "path", m.configPath)
		return nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", m.configPath, err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", m.configPath, err)
	}

	return nil
}

func (m *Manager) loadFromEnv(config *AppConfig) {
	if val := os.Getenv("APP_NAME"); val != "" {
		config.AppName = val
	}
	if val := os.Getenv("VERSION"); val != "" {
		config.Version = val
	}

	if val := os.Getenv("PROVIDER_BASE_URL"); val != "" {
		config.Provider.BaseURL = val
	}
	if val := os.Getenv("PROVIDER_API_KEY"); val != "" {
		config.Provider.APIKey = val
	}
	if val := os.Getenv("PROVIDER_RATE_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Provider.RateLimit = n
		}
	}
	if val := os.Getenv("PROVIDER_TIMEOUT"); val != "" {
		config.Provider.Timeout = val
	}
	if val := os.Getenv("PROVIDER_LOOKBACK"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Provider.LookbackDays = n
		}
	}

	if val := os.Getenv("SPIKE_MULTIPLIER"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			config.Validator.SpikeMultiplier = f
		}
	}
	if val := os.Getenv("VOLUME_MULTIPLIER"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			config.Validator.VolumeMultiplier = f
		}
	}
	if val := os.Getenv("MIN_VOLUME"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Validator.MinVolume = n
		}
	}
	if val := os.Getenv("CLEAN_POLICY"); val != "" {
		config.Validator.Policy = val
	}

	if val := os.Getenv("DEFAULT_TIMEFRAME"); val != "" {
		config.Resample.DefaultTimeframe = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("LOG_OUTPUT"); val != "" {
		config.Logging.Output = val
	}
	if val := os.Getenv("LOG_FILE_PATH"); val != "" {
		config.Logging.FilePath = val
	}

	if val := os.Getenv("RETRY_MAX_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Retry.MaxAttempts = n
		}
	}
	if val := os.Getenv("RETRY_INITIAL_DELAY"); val != "" {
		config.Retry.InitialDelay = val
	}
	if val := os.Getenv("RETRY_MAX_DELAY"); val != "" {
		config.Retry.MaxDelay = val
	}
}

// Validate checks the configuration for consistency and required fields.
func (c *AppConfig) Validate() error {
	var problems []string

	if c.Provider.BaseURL == "" {
		problems = append(problems, "provider.base_url is required")
	}
	if c.Provider.RateLimit <= 0 {
		problems = append(problems, "provider.rate_limit must be greater than 0")
	}
	if c.Provider.Timeout != "" {
		if _, err := time.ParseDuration(c.Provider.Timeout); err != nil {
			problems = append(problems, fmt.Sprintf("provider.timeout is not a valid duration: %v", err))
		}
	}

	if c.Validator.SpikeMultiplier <= 0 {
		problems = append(problems, "validator.spike_multiplier must be greater than 0")
	}
	if c.Validator.VolumeMultiplier <= 0 {
		problems = append(problems, "validator.volume_multiplier must be greater than 0")
	}
	if c.Validator.MinVolume < 0 {
		problems = append(problems, "validator.min_volume must not be negative")
	}
	switch c.Validator.Policy {
	case "drop", "interpolate":
	default:
		problems = append(problems, "validator.policy must be one of: drop, interpolate")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		problems = append(problems, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		problems = append(problems, "logging.format must be one of: json, text")
	}

	if c.Retry.MaxAttempts <= 0 {
		problems = append(problems, "retry.max_attempts must be greater than 0")
	}
	for _, field := range []struct{ name, value string }{
		{"retry.initial_delay", c.Retry.InitialDelay},
		{"retry.max_delay", c.Retry.MaxDelay},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			problems = append(problems, fmt.Sprintf("%s is not a valid duration: %v", field.name, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Get returns the loaded configuration.
func (m *Manager) Get() *AppConfig {
	return m.config
}

// Save writes the current configuration to the config file.
func (m *Manager) Save() error {
	if m.configPath == "" {
		return fmt.Errorf("no config path specified")
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.logger.Info("configuration saved", "path", m.configPath)
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "candle-engine",
		Version: "1.0.0",
		Provider: ProviderConfig{
			BaseURL:      "https://api.polygon.io",
			RateLimit:    5,
			Timeout:      "30s",
			LookbackDays: 1,
		},
		Validator: ValidatorConfig{
			SpikeMultiplier:  15.0,
			VolumeMultiplier: 100.0,
			MinVolume:        1000,
			Policy:           "drop",
		},
		Resample: ResampleConfig{
			DefaultTimeframe: "5m",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
			ContextFields: map[string]string{
				"service": "candle-engine",
			},
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: "500ms",
			MaxDelay:     "30s",
		},
	}
}

// ProviderTimeout returns the provider timeout as a duration, falling back to
// 30 seconds on a missing or unparseable value.
func (c *AppConfig) ProviderTimeout() time.Duration {
	d, err := time.ParseDuration(c.Provider.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// String renders the configuration as indented JSON with credentials redacted.
func (c *AppConfig) String() string {
	sanitized := *c
	if sanitized.Provider.APIKey != "" {
		sanitized.Provider.APIKey = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(&sanitized, "", "  ")
	return string(data)
}
