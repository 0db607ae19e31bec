// Package cli holds configuration loading and output helpers for the
// rollgate command line tool.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration file.
type Config struct {
	DefaultContext string                   `yaml:"default_context"`
	Contexts       map[string]ContextConfig `yaml:"contexts"`
}

// ContextConfig holds the connection settings for one named server.
type ContextConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".rollgate", "config.yaml"), nil
}

// LoadConfig loads the configuration from file. A missing file yields an
// empty config rather than an error.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				DefaultContext: "default",
				Contexts:       make(map[string]ContextConfig),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// SaveConfig saves the configuration to file.
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveContext returns the connection settings to use.
// Priority: command flags > environment variables > config file.
func ResolveContext(contextName, baseURLFlag, apiKeyFlag string) (*ContextConfig, error) {
	if baseURLFlag != "" && apiKeyFlag != "" {
		return &ContextConfig{BaseURL: baseURLFlag, APIKey: apiKeyFlag}, nil
	}

	envBaseURL := os.Getenv("ROLLGATE_BASE_URL")
	envAPIKey := os.Getenv("ROLLGATE_API_KEY")
	if envBaseURL != "" && envAPIKey != "" {
		return &ContextConfig{BaseURL: envBaseURL, APIKey: envAPIKey}, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if contextName == "" {
		contextName = cfg.DefaultContext
	}
	ctx, ok := cfg.Contexts[contextName]
	if !ok {
		return nil, fmt.Errorf("no configuration for context %q: run 'rollgate config set' or pass --base-url and --api-key", contextName)
	}
	return &ctx, nil
}
