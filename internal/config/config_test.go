package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Timeouts.Builder != 15*time.Minute {
		t.Errorf("expected builder timeout 15m, got %v", cfg.Timeouts.Builder)
	}

	if cfg.Timeouts.Validator != 5*time.Minute {
		t.Errorf("expected validator timeout 5m, got %v", cfg.Timeouts.Validator)
	}

	if cfg.Timeouts.Escalation != 30*time.Minute {
		t.Errorf("expected escalation timeout 30m, got %v", cfg.Timeouts.Escalation)
	}

	if cfg.Bridge.Enabled {
		t.Error("expected bridge to be disabled by default")
	}

	if cfg.Storage.Path != ".crucible/crucible.db" {
		t.Errorf("expected default storage path, got %q", cfg.Storage.Path)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  use_aws_bedrock: true
  aws_region: us-west-2
models:
  low: claude-3-5-haiku-20241022
  high: claude-opus-4-1-20250805
retry:
  max_attempts: 5
timeouts:
  builder: 20m
  validator: 2m
bridge:
  enabled: true
  dir: /tmp/bridge
storage:
  path: /tmp/audit.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if !cfg.Anthropic.UseAWSBedrock {
		t.Error("expected use_aws_bedrock to be true")
	}

	if cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("expected region 'us-west-2', got %q", cfg.Anthropic.AWSRegion)
	}

	if cfg.Models.Low != "claude-3-5-haiku-20241022" {
		t.Errorf("expected low model override, got %q", cfg.Models.Low)
	}

	if cfg.Models.Medium != "" {
		t.Errorf("expected medium model to stay at the default, got %q", cfg.Models.Medium)
	}

	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Timeouts.Builder != 20*time.Minute {
		t.Errorf("expected builder timeout 20m, got %v", cfg.Timeouts.Builder)
	}

	if cfg.Timeouts.Validator != 2*time.Minute {
		t.Errorf("expected validator timeout 2m, got %v", cfg.Timeouts.Validator)
	}

	if cfg.Timeouts.Escalation != 30*time.Minute {
		t.Errorf("expected escalation timeout to stay at the default, got %v", cfg.Timeouts.Escalation)
	}

	if !cfg.Bridge.Enabled || cfg.Bridge.Dir != "/tmp/bridge" {
		t.Errorf("bridge config = %+v", cfg.Bridge)
	}

	if cfg.Storage.Path != "/tmp/audit.db" {
		t.Errorf("expected storage path '/tmp/audit.db', got %q", cfg.Storage.Path)
	}
}

func TestLoadFromPathExpandsAPIKey(t *testing.T) {
	os.Setenv("CRUCIBLE_TEST_KEY", "sk-ant-from-env")
	defer os.Unsetenv("CRUCIBLE_TEST_KEY")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := "anthropic:\n  api_key: ${CRUCIBLE_TEST_KEY}\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("expected expanded key, got %q", cfg.Anthropic.APIKey)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/crucible"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
