package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/atlas-foundry/psml-go-sdk/internal/logger"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "psml.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/psml"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// EnvRedisAddr overrides session.redis_addr
	EnvRedisAddr = "PSML_REDIS_ADDR"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *logger.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(log *logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{logger: log}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/psml/config.yaml)
// 3. Project config (psml.yaml in current or parent directories)
// 4. Explicit file (--config), when path is non-empty
// 5. Environment variables
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", "path", userConfigPath)
		config.Merge(userConfig)
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load user config", "path", userConfigPath, "error", err)
	}

	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", "path", projectConfigPath)
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", "path", projectConfigPath, "error", err)
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if path != "" {
		explicit, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded explicit config", "path", path)
		config.Merge(explicit)
	}

	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		config.Session.RedisAddr = addr
		l.logger.Debug("Redis address from environment", "addr", addr)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()
	if _, err := os.Stat(userConfigPath); err == nil {
		return nil
	}
	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return err
	}
	l.logger.Info("Created default user config", "path", userConfigPath)
	return nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for psml.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
