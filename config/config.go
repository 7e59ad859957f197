// Package config provides configuration management for the VPN settings backend.
// It handles loading, saving, and managing the YAML settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yllada/vpn-settings/common"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// Bus selects the D-Bus bus connman is reached on: "system" or "session".
	Bus string `yaml:"bus"`
	// Service is the well-known bus name of the connman VPN daemon.
	Service string `yaml:"service"`
	// TokenDir holds the zero-length auto-connect marker files.
	TokenDir string `yaml:"token_dir"`
	// CredentialsDir holds one encoded credential blob per connection.
	CredentialsDir string `yaml:"credentials_dir"`
	// ProvisioningDir receives files extracted from imported profiles.
	ProvisioningDir string `yaml:"provisioning_dir"`
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogJSON switches log output to JSON lines.
	LogJSON bool `yaml:"log_json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dataDir, err := common.GetDataDir()
	if err != nil {
		dataDir = filepath.Join(os.TempDir(), "system")
	}
	return &Config{
		Bus:             "system",
		Service:         common.ConnmanService,
		TokenDir:        filepath.Join(dataDir, common.TokenDirName),
		CredentialsDir:  filepath.Join(dataDir, common.CredentialsDirName),
		ProvisioningDir: filepath.Join(dataDir, common.ProvisioningDirName),
		LogLevel:        "info",
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from path, writing defaults there when
// the file is missing.
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(configPath); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: error parsing configuration: %w", common.ErrConfigLoad, err)
	}

	config.validate()
	return config, nil
}

// validate replaces invalid or empty values with their defaults.
func (c *Config) validate() {
	defaults := DefaultConfig()

	if c.Bus != "system" && c.Bus != "session" {
		c.Bus = defaults.Bus
	}
	if c.Service == "" {
		c.Service = defaults.Service
	}
	if c.TokenDir == "" {
		c.TokenDir = defaults.TokenDir
	}
	if c.CredentialsDir == "" {
		c.CredentialsDir = defaults.CredentialsDir
	}
	if c.ProvisioningDir == "" {
		c.ProvisioningDir = defaults.ProvisioningDir
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		c.LogLevel = defaults.LogLevel
	}
}

// Save saves the configuration to the default file.
func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %w", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %w", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: %w", common.ErrConfigSave, err)
	}

	return nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, common.ConfigFileName), nil
}
