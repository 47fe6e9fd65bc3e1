package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify crucible configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/crucible/config.yaml
Project-specific overrides can be placed in .crucible.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Printf("anthropic.aws_profile: %s\n", cfg.Anthropic.AWSProfile)
	fmt.Printf("models.low: %s\n", cfg.Models.Low)
	fmt.Printf("models.medium: %s\n", cfg.Models.Medium)
	fmt.Printf("models.high: %s\n", cfg.Models.High)
	fmt.Printf("retry.max_attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("timeouts.builder: %s\n", cfg.Timeouts.Builder)
	fmt.Printf("timeouts.validator: %s\n", cfg.Timeouts.Validator)
	fmt.Printf("timeouts.escalation: %s\n", cfg.Timeouts.Escalation)
	fmt.Printf("bridge.enabled: %t\n", cfg.Bridge.Enabled)
	fmt.Printf("bridge.dir: %s\n", cfg.Bridge.Dir)
	fmt.Printf("storage.path: %s\n", cfg.Storage.Path)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "models.low":
		return cfg.Models.Low, nil
	case "models.medium":
		return cfg.Models.Medium, nil
	case "models.high":
		return cfg.Models.High, nil
	case "retry.max_attempts":
		return strconv.Itoa(cfg.Retry.MaxAttempts), nil
	case "timeouts.builder":
		return cfg.Timeouts.Builder.String(), nil
	case "timeouts.validator":
		return cfg.Timeouts.Validator.String(), nil
	case "timeouts.escalation":
		return cfg.Timeouts.Escalation.String(), nil
	case "bridge.enabled":
		return strconv.FormatBool(cfg.Bridge.Enabled), nil
	case "bridge.dir":
		return cfg.Bridge.Dir, nil
	case "storage.path":
		return cfg.Storage.Path, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for use_aws_bedrock: %w", err)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "models.low":
		cfg.Models.Low = value
	case "models.medium":
		cfg.Models.Medium = value
	case "models.high":
		cfg.Models.High = value
	case "retry.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for max_attempts: %s", value)
		}
		cfg.Retry.MaxAttempts = n
	case "timeouts.builder":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for builder timeout: %w", err)
		}
		cfg.Timeouts.Builder = d
	case "timeouts.validator":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for validator timeout: %w", err)
		}
		cfg.Timeouts.Validator = d
	case "timeouts.escalation":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for escalation timeout: %w", err)
		}
		cfg.Timeouts.Escalation = d
	case "bridge.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for bridge.enabled: %w", err)
		}
		cfg.Bridge.Enabled = b
	case "bridge.dir":
		cfg.Bridge.Dir = value
	case "storage.path":
		cfg.Storage.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
