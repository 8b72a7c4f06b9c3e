package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"editor-gateway/src/config"
	"editor-gateway/src/internal/common"
)

// LoadConfigWithFallback loads configuration from the given path, the
// default path, or falls back to built-in defaults. It never fails; a
// broken file is reported and defaults are used.
func LoadConfigWithFallback(configPath string) *config.Config {
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			common.CLILogger.Warn("Failed to load config from %s: %v, using defaults", configPath, err)
			return config.GetDefaultConfig()
		}
		return cfg
	}

	defaultPath := config.GetDefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.LoadConfig(defaultPath)
		if err != nil {
			common.CLILogger.Warn("Failed to load config from %s: %v, using defaults", defaultPath, err)
			return config.GetDefaultConfig()
		}
		return cfg
	}

	return config.GetDefaultConfig()
}

// ShowConfig prints the effective configuration as YAML.
func ShowConfig(configPath string) error {
	cfg := LoadConfigWithFallback(configPath)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Print(string(data))
	return nil
}

// InitConfig writes a default configuration file. Existing files are
// preserved unless force is set.
func InitConfig(configPath string, force bool) error {
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.GenerateDefaultConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	common.CLILogger.Info("Wrote default configuration to %s", configPath)
	return nil
}
