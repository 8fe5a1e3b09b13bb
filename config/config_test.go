package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test_config.json")

	configData, err := json.Marshal(map[string]any{
		"store": map[string]any{"backend": "bolt", "bolt_path": "test.db"},
		"thread_pool": map[string]any{"size": 4},
		"email": map[string]any{
			"smtp": map[string]any{"host": "smtp.example.com", "port": 587},
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}

	if err := os.WriteFile(configFile, configData, 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Store.Backend != "bolt" {
		t.Errorf("Expected store.backend 'bolt', got '%s'", cfg.Store.Backend)
	}
	if cfg.Store.BoltPath != "test.db" {
		t.Errorf("Expected store.bolt_path 'test.db', got '%s'", cfg.Store.BoltPath)
	}
	if cfg.ThreadPool.Size != 4 {
		t.Errorf("Expected thread_pool.size 4, got %d", cfg.ThreadPool.Size)
	}
	if cfg.Email.SMTP.Host != "smtp.example.com" {
		t.Errorf("Expected email.smtp.host 'smtp.example.com', got '%s'", cfg.Email.SMTP.Host)
	}
	if cfg.Thread.IdleWaitTimeMs != 30_000 {
		t.Errorf("Expected default idle_wait_time_ms 30000, got %d", cfg.Thread.IdleWaitTimeMs)
	}
	if cfg.SchedulerName != "chronoq" {
		t.Errorf("Expected default scheduler_name 'chronoq', got '%s'", cfg.SchedulerName)
	}
}

func TestLoadConfigNonExistentFile(t *testing.T) {
	_, err := LoadConfig("non_existent_file.json")
	if err == nil {
		t.Error("Expected error when loading non-existent config file")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid_config.json")

	if err := os.WriteFile(configFile, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write invalid config file: %v", err)
	}

	_, err := LoadConfig(configFile)
	if err == nil {
		t.Error("Expected error when loading invalid JSON config file")
	}
}

func TestLoadConfigRejectsUnknownStoreBackend(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "bad_backend.json")

	configData, _ := json.Marshal(map[string]any{
		"store": map[string]any{"backend": "redis"},
	})
	if err := os.WriteFile(configFile, configData, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfig(configFile)
	if err == nil {
		t.Error("Expected error for unknown store backend")
	}
}

func TestLoadConfigRejectsNotifyWithoutWebhookURL(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "bad_notify.json")

	configData, _ := json.Marshal(map[string]any{
		"notify": map[string]any{"enabled": true},
	})
	if err := os.WriteFile(configFile, configData, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfig(configFile)
	if err == nil {
		t.Error("Expected error when notify.enabled is true without a webhook_url")
	}
}
