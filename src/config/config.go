package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/constants"
	"editor-gateway/src/internal/registry"
)

// Config contains gateway and language server configuration
type Config struct {
	// Host and Port select the WebSocket listener address. Occupied
	// ports are retried upward from Port.
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	Servers map[string]*ServerConfig `yaml:"servers"`
}

// ServerConfig contains configuration for a single language server
type ServerConfig struct {
	Command               string            `yaml:"command"`
	Args                  []string          `yaml:"args"`
	WorkingDir            string            `yaml:"working_dir,omitempty"`
	Env                   map[string]string `yaml:"env,omitempty"`
	InitializationOptions interface{}       `yaml:"initialization_options,omitempty"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := common.SafeReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateDefaultConfig generates a default configuration file
func GenerateDefaultConfig(path string) error {
	return SaveConfig(GetDefaultConfig(), path)
}

func validateConfig(config *Config) error {
	if config.Servers == nil {
		return fmt.Errorf("servers configuration is required")
	}

	for language, serverConfig := range config.Servers {
		if serverConfig.Command == "" {
			return fmt.Errorf("command is required for language %s", language)
		}
	}

	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port out of range: %d", config.Port)
	}

	return nil
}

func applyDefaults(config *Config) {
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.Port == 0 {
		config.Port = constants.DefaultGatewayPort
	}
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".editor-gateway", "config.yaml")
}

// GetDefaultConfig returns a default configuration built from the
// language registry.
func GetDefaultConfig() *Config {
	servers := make(map[string]*ServerConfig)
	for _, lang := range registry.GetSupportedLanguages() {
		servers[lang.Name] = &ServerConfig{
			Command: lang.DefaultCommand,
			Args:    append([]string{}, lang.DefaultArgs...),
		}
	}
	return &Config{
		Host:    "127.0.0.1",
		Port:    constants.DefaultGatewayPort,
		Servers: servers,
	}
}

// ServerConfigFor returns the configured server for a language, falling
// back to the registry default when no explicit entry exists.
func (c *Config) ServerConfigFor(language string) (*ServerConfig, bool) {
	if c != nil && c.Servers != nil {
		if sc, ok := c.Servers[language]; ok {
			return sc, true
		}
	}
	lang, ok := registry.GetLanguageByName(language)
	if !ok {
		return nil, false
	}
	return &ServerConfig{
		Command: lang.DefaultCommand,
		Args:    append([]string{}, lang.DefaultArgs...),
	}, true
}
