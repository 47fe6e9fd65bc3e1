// Package config handles configuration loading for crucible. It supports
// XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for crucible.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Models    ModelsConfig    `mapstructure:"models"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// ModelsConfig maps model classes onto concrete model names. Empty values
// fall back to the runner's built-in defaults.
type ModelsConfig struct {
	Low    string `mapstructure:"low"`
	Medium string `mapstructure:"medium"`
	High   string `mapstructure:"high"`
}

// RetryConfig holds cycle retry settings.
type RetryConfig struct {
	// MaxAttempts is the per-task attempt ceiling.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// TimeoutsConfig holds per-role invocation timeouts.
type TimeoutsConfig struct {
	Builder    time.Duration `mapstructure:"builder"`
	Validator  time.Duration `mapstructure:"validator"`
	Escalation time.Duration `mapstructure:"escalation"`
}

// BridgeConfig holds file-bridge settings for externally hosted agents.
type BridgeConfig struct {
	// Enabled switches agent invocation from the API to the file bridge.
	Enabled bool `mapstructure:"enabled"`
	// Dir is the bridge exchange directory.
	Dir string `mapstructure:"dir"`
}

// StorageConfig holds audit store settings.
type StorageConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `mapstructure:"path"`
}

// Load loads configuration with the following precedence (highest first):
//
//  1. Environment variables (ANTHROPIC_API_KEY, CRUCIBLE_*)
//  2. Project config (.crucible.yaml in current directory or a parent)
//  3. User config (~/.config/crucible/config.yaml)
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

	v.SetEnvPrefix("CRUCIBLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

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

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("models.low", cfg.Models.Low)
	v.Set("models.medium", cfg.Models.Medium)
	v.Set("models.high", cfg.Models.High)
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("timeouts.builder", cfg.Timeouts.Builder.String())
	v.Set("timeouts.validator", cfg.Timeouts.Validator.String())
	v.Set("timeouts.escalation", cfg.Timeouts.Escalation.String())
	v.Set("bridge.enabled", cfg.Bridge.Enabled)
	v.Set("bridge.dir", cfg.Bridge.Dir)
	v.Set("storage.path", cfg.Storage.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("models.low", "")
	v.SetDefault("models.medium", "")
	v.SetDefault("models.high", "")

	v.SetDefault("retry.max_attempts", 3)

	v.SetDefault("timeouts.builder", "15m")
	v.SetDefault("timeouts.validator", "5m")
	v.SetDefault("timeouts.escalation", "30m")

	v.SetDefault("bridge.enabled", false)
	v.SetDefault("bridge.dir", ".crucible/bridge")

	v.SetDefault("storage.path", ".crucible/crucible.db")
}

// getUserConfigDir returns the XDG config directory for crucible.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "crucible")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "crucible")
	}
	return filepath.Join(home, ".config", "crucible")
}

// findProjectConfig searches for .crucible.yaml in the current directory
// and its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".crucible.yaml")
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
		Retry: RetryConfig{MaxAttempts: 3},
		Timeouts: TimeoutsConfig{
			Builder:    15 * time.Minute,
			Validator:  5 * time.Minute,
			Escalation: 30 * time.Minute,
		},
		Bridge:  BridgeConfig{Dir: ".crucible/bridge"},
		Storage: StorageConfig{Path: ".crucible/crucible.db"},
	}
}
