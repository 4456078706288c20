// Package config handles configuration loading for coxswain. It supports
// XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for coxswain.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Classify  ClassifyConfig  `mapstructure:"classify"`
	Gates     GatesConfig     `mapstructure:"gates"`
	TUI       TUIConfig       `mapstructure:"tui"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AnthropicConfig holds Anthropic API settings for the API executor.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// ExecutorConfig selects the implementation executor backend.
type ExecutorConfig struct {
	// Backend is "api" (Anthropic-backed) or "manual" (a human marks
	// criteria done between rounds).
	Backend string `mapstructure:"backend"`
}

// ClassifyConfig holds complexity-classifier settings.
type ClassifyConfig struct {
	// KeywordsFile optionally overrides the built-in complexity keyword
	// weights with a YAML file.
	KeywordsFile string `mapstructure:"keywords_file"`
}

// GatesConfig holds quality-gate execution settings.
type GatesConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// TUIConfig holds status display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// LoggingConfig holds debug-log settings.
type LoggingConfig struct {
	// DebugLog is a file path for the debug log; empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// Load loads configuration with the following precedence (highest to
// lowest):
//  1. Environment variables (ANTHROPIC_API_KEY)
//  2. Project config (.coxswain.yaml in current directory or a parent)
//  3. User config (~/.config/coxswain/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references so keys can live outside the file.
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("executor.backend", "api")
	v.SetDefault("classify.keywords_file", "")
	v.SetDefault("gates.timeout", "5m")
	v.SetDefault("tui.refresh_rate", "500ms")
	v.SetDefault("logging.debug_log", "")
}

// getUserConfigDir returns the XDG config directory for coxswain.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "coxswain")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "coxswain")
	}
	return filepath.Join(home, ".config", "coxswain")
}

// findProjectConfig searches for .coxswain.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".coxswain.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{Backend: "api"},
		Gates:    GatesConfig{Timeout: 5 * time.Minute},
		TUI:      TUIConfig{RefreshRate: 500 * time.Millisecond},
	}
}
