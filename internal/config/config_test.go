package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "moaflow-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	// Loading a missing config creates the default one
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheme != "moaflow" {
		t.Errorf("Expected scheme 'moaflow', got %s", cfg.Scheme)
	}
	if cfg.MaxRecursion != 32 {
		t.Errorf("Expected MaxRecursion 32, got %d", cfg.MaxRecursion)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel 'info', got %s", cfg.LogLevel)
	}
	if !strings.HasSuffix(cfg.DBPath, filepath.Join(".moaflow", "moaflow.db")) {
		t.Errorf("Unexpected DBPath %s", cfg.DBPath)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	cfg2, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load existing config failed: %v", err)
	}
	if *cfg2 != *cfg {
		t.Errorf("Config mismatch after reload: %+v vs %+v", cfg2, cfg)
	}
}

func TestLoadExistingConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "moaflow-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")

	customConfig := `scheme: yourbank
db_path: /tmp/test.db
use_case_dir: /tmp/usecases
modules_manifest: /tmp/modules.yaml
max_recursion: 5
log_level: debug
trace_path: /tmp/journey.jsonl
metrics_addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(customConfig), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Config{
		Scheme:          "yourbank",
		DBPath:          "/tmp/test.db",
		UseCaseDir:      "/tmp/usecases",
		ModulesManifest: "/tmp/modules.yaml",
		MaxRecursion:    5,
		LogLevel:        "debug",
		TracePath:       "/tmp/journey.jsonl",
		MetricsAddr:     ":9090",
	}
	if *cfg != want {
		t.Errorf("Expected %+v, got %+v", want, *cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"scheme starting with digit", "scheme: 1bank\n"},
		{"zero recursion", "max_recursion: 0\n"},
		{"unknown log level", "log_level: loud\n"},
		{"bad yaml", "scheme: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := Load(configPath); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("MOAFLOW_CONFIG", "/etc/moaflow.yaml")
	if got := GetConfigPath(); got != "/etc/moaflow.yaml" {
		t.Errorf("Expected MOAFLOW_CONFIG to win, got %s", got)
	}

	t.Setenv("MOAFLOW_CONFIG", "")
	if got := GetConfigPath(); !strings.HasSuffix(got, filepath.Join(".moaflow", "config.yaml")) {
		t.Errorf("Unexpected default path %s", got)
	}
}
