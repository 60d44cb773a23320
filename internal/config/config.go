package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/themobileprof/moaflow/internal/urlvalue"
)

// Config represents the application configuration
type Config struct {
	Scheme          string `yaml:"scheme"`
	DBPath          string `yaml:"db_path"`
	UseCaseDir      string `yaml:"use_case_dir"`
	ModulesManifest string `yaml:"modules_manifest,omitempty"`
	MaxRecursion    int    `yaml:"max_recursion"`
	LogLevel        string `yaml:"log_level"`
	TracePath       string `yaml:"trace_path,omitempty"`
	MetricsAddr     string `yaml:"metrics_addr,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Scheme:       "moaflow",
		DBPath:       filepath.Join(homeDir, ".moaflow", "moaflow.db"),
		UseCaseDir:   filepath.Join(homeDir, ".moaflow", "usecases"),
		MaxRecursion: 32,
		LogLevel:     "info",
	}
}

// Load reads configuration from file, creating with defaults if it doesn't exist
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default() // Start with defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the engine cannot run with
func (c *Config) Validate() error {
	if _, err := urlvalue.New(c.Scheme, "module", "", nil); err != nil {
		return fmt.Errorf("invalid scheme %q: %w", c.Scheme, err)
	}
	if c.MaxRecursion < 1 {
		return fmt.Errorf("max_recursion must be positive, got %d", c.MaxRecursion)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Save writes the configuration to file
func (c *Config) Save(path string) error {
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

// GetConfigPath returns the config file path, honoring MOAFLOW_CONFIG
func GetConfigPath() string {
	if path := os.Getenv("MOAFLOW_CONFIG"); path != "" {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".moaflow", "config.yaml")
}
