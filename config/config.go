// Package config provides configuration loading and management for the psml CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/atlas-foundry/psml-go-sdk/psml"
	"github.com/atlas-foundry/psml-go-sdk/session"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config represents the complete psml configuration
type Config struct {
	Validation ValidationConfig `yaml:"validation"`
	Session    SessionConfig    `yaml:"session"`
	Log        LogConfig        `yaml:"log"`
}

// ValidationConfig configures the validator
type ValidationConfig struct {
	// MaxDepth is the nesting depth above which a best-practice warning is raised
	MaxDepth int `yaml:"max_depth"`
	// FailOnWarnings makes `psml validate` exit non-zero when any warning is reported
	FailOnWarnings bool `yaml:"fail_on_warnings"`
}

// SessionConfig configures where the editing session document is kept
type SessionConfig struct {
	// Backend is one of memory, file, redis
	Backend string `yaml:"backend"`
	// Key is the storage key of the session document
	Key string `yaml:"key"`
	// Dir is the file backend directory (empty = user cache dir)
	Dir string `yaml:"dir"`
	// RedisAddr is host:port of the redis backend
	RedisAddr string `yaml:"redis_addr"`
	// RedisDB selects the redis database
	RedisDB int `yaml:"redis_db"`
}

// LogConfig configures logging
type LogConfig struct {
	// Mode is dev, prod or quiet
	Mode string `yaml:"mode"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Validation: ValidationConfig{
			MaxDepth: psml.DefaultMaxDepth,
		},
		Session: SessionConfig{
			Backend:   BackendFile,
			Key:       session.DefaultKey,
			RedisAddr: "localhost:6379",
		},
		Log: LogConfig{
			Mode: "quiet",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Validation.MaxDepth < 1 {
		return fmt.Errorf("validation.max_depth must be at least 1")
	}
	if !slices.Contains([]string{BackendMemory, BackendFile, BackendRedis}, c.Session.Backend) {
		return fmt.Errorf("session.backend must be one of memory, file, redis (got %q)", c.Session.Backend)
	}
	if c.Session.Key == "" {
		return fmt.Errorf("session.key is required")
	}
	if c.Session.Backend == BackendRedis && c.Session.RedisAddr == "" {
		return fmt.Errorf("session.redis_addr is required for the redis backend")
	}
	if c.Session.RedisDB < 0 {
		return fmt.Errorf("session.redis_db must not be negative")
	}
	if !slices.Contains([]string{"", "dev", "prod", "production", "quiet"}, c.Log.Mode) {
		return fmt.Errorf("log.mode must be one of dev, prod, quiet (got %q)", c.Log.Mode)
	}
	return nil
}

// SessionDir returns the file backend directory, defaulting to <user cache dir>/psml.
func (c *Config) SessionDir() (string, error) {
	if c.Session.Dir != "" {
		return c.Session.Dir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve session dir: %w", err)
	}
	return filepath.Join(cache, "psml"), nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Validation
	if other.Validation.MaxDepth != 0 {
		c.Validation.MaxDepth = other.Validation.MaxDepth
	}
	if other.Validation.FailOnWarnings {
		c.Validation.FailOnWarnings = true
	}

	// Session
	if other.Session.Backend != "" {
		c.Session.Backend = other.Session.Backend
	}
	if other.Session.Key != "" {
		c.Session.Key = other.Session.Key
	}
	if other.Session.Dir != "" {
		c.Session.Dir = other.Session.Dir
	}
	if other.Session.RedisAddr != "" {
		c.Session.RedisAddr = other.Session.RedisAddr
	}
	if other.Session.RedisDB != 0 {
		c.Session.RedisDB = other.Session.RedisDB
	}

	// Log
	if other.Log.Mode != "" {
		c.Log.Mode = other.Log.Mode
	}
}
