// Package config loads application settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App    AppConfig
	Server ServerConfig
	Data   DataConfig
	Log    LogConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string
	Environment string // development, production
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// DataConfig holds persistence settings
type DataConfig struct {
	File     string
	Autosave bool // save after every successful mutation
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string
}

// ConfigFileEnv names an env file that replaces the default .env lookup.
const ConfigFileEnv = "CONFIG_FILE"

// Load loads configuration from environment variables and .env file.
// When CONFIG_FILE is set, that file is read instead and must exist.
func Load() (*Config, error) {
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		return LoadWithPath(path)
	}

	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine; environment variables still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	return build(v)
}

// LoadWithPath loads configuration from a specific env file
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return build(v)
}

// SetConfigFile bypasses viper's search path, so a missing file surfaces as a
// plain fs error rather than ConfigFileNotFoundError.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func build(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: v.GetString("APP_ENVIRONMENT"),
		},
		Server: ServerConfig{
			Port:         v.GetInt("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("SERVER_IDLE_TIMEOUT"),
		},
		Data: DataConfig{
			File:     v.GetString("DATA_FILE"),
			Autosave: v.GetBool("DATA_AUTOSAVE"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "event-manager")
	v.SetDefault("APP_ENVIRONMENT", "development")

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "60s")

	v.SetDefault("DATA_FILE", "eventos_db.json")
	v.SetDefault("DATA_AUTOSAVE", false)

	v.SetDefault("LOG_LEVEL", "info")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Data.File) == "" {
		return errors.New("data file path is required")
	}
	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
