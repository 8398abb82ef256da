package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EngineConfig holds ComfyUI endpoint settings.
type EngineConfig struct {
	URL      string `yaml:"url" validate:"omitempty,url"`
	ClientID string `yaml:"client_id"`
	// Dispatch controls whether new runs are sent to the engine
	// immediately or just persisted as QUEUED.
	Dispatch bool `yaml:"dispatch"`
}

// ServerConfig holds configuration for the comfyflow server.
type ServerConfig struct {
	Addr      string       `yaml:"addr" validate:"required"`
	LogLevel  string       `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string       `yaml:"log_format" validate:"oneof=text json"`
	DBPath    string       `yaml:"db_path"`
	Engine    EngineConfig `yaml:"engine"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Engine: EngineConfig{
			URL: "http://127.0.0.1:8188",
		},
	}
}

// Validate checks field constraints.
func (c *ServerConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadFile reads a YAML config file over the given defaults.
// Fields absent from the file keep their default values.
func LoadFile(path string, defaults ServerConfig) (ServerConfig, error) {
	cfg := defaults

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
