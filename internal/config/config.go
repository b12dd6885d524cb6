package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service-side configuration: where the HTTP API listens,
// where state lives on disk and which external binaries the render engine
// invokes. Printer-facing settings live in Settings and are managed
// separately.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	History  HistoryConfig  `yaml:"history"`
	Render   RenderConfig   `yaml:"render"`
	Settings SettingsConfig `yaml:"settings"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
	// RetentionDays bounds how long print records are kept. Zero or
	// negative disables pruning.
	RetentionDays int `yaml:"retention_days"`
}

type RenderConfig struct {
	Compiler  string `yaml:"compiler"`
	Installer string `yaml:"installer"`
	Converter string `yaml:"converter"`
}

type SettingsConfig struct {
	Path string `yaml:"path"`
}

type WebhookConfig struct {
	URL string `yaml:"url"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		History: HistoryConfig{
			Path:          "./data/printd.db",
			RetentionDays: 30,
		},
		Render: RenderConfig{
			Compiler:  "pdflatex",
			Installer: "mpm",
			Converter: "pdftoppm",
		},
		Settings: SettingsConfig{
			Path: "./printer_settings.json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML service config, falling back to defaults when the
// file does not exist.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays PRINTD_* environment variables on top of the loaded
// configuration.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PRINTD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("PRINTD_DB_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("PRINTD_SETTINGS_PATH"); v != "" {
		c.Settings.Path = v
	}
	if v := os.Getenv("PRINTD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.History.Path == "" {
		return fmt.Errorf("history path is required")
	}

	if c.Settings.Path == "" {
		return fmt.Errorf("settings path is required")
	}

	if c.Render.Compiler == "" || c.Render.Installer == "" || c.Render.Converter == "" {
		return fmt.Errorf("render binaries must not be empty")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
