package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP server and storage paths.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr"`
	LogLevel     string `json:"log_level"`
	DataDir      string `json:"data_dir"`
	DatabasePath string `json:"database_path"`
}

// ModelConfig holds the defaults applied when a model is created without
// explicit parameters.
type ModelConfig struct {
	DefaultOrder int    `json:"default_order"`
	Terminator   string `json:"terminator"`
}

// GenerateConfig holds the limits applied to generation requests.
type GenerateConfig struct {
	DefaultCount int `json:"default_count"`
	MaxCount     int `json:"max_count"`
	MaxSteps     int `json:"max_steps"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server   *ServerConfig   `json:"server_config"`
	Model    *ModelConfig    `json:"model_config"`
	Generate *GenerateConfig `json:"generate_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      ":7278",
		LogLevel:     "info",
		DataDir:      "./data",
		DatabasePath: "./data/glossa.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

// DefaultModelConfig creates a model configuration with default values.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		DefaultOrder: 3,
		Terminator:   "\n",
	}
}

// DefaultGenerateConfig creates a generation configuration with default values.
func DefaultGenerateConfig() *GenerateConfig {
	return &GenerateConfig{
		DefaultCount: 1,
		MaxCount:     100,
		MaxSteps:     4096,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server:   DefaultServerConfig(),
		Model:    DefaultModelConfig(),
		Generate: DefaultGenerateConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			if err = SaveConfig(path, config); err != nil {
				// Log a warning instead of failing, as the server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig writes the configuration to disk atomically, so a crash during
// the write cannot leave a half-written config behind.
func SaveConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
