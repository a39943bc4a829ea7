package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the isoflux configuration
type Config struct {
	Fit    FitConfig    `yaml:"fit" mapstructure:"fit"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
}

// FitConfig contains the flux-fitting settings
type FitConfig struct {
	Restarts      int     `yaml:"restarts" mapstructure:"restarts"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	ObjectiveTol  float64 `yaml:"objective_tolerance" mapstructure:"objective_tolerance"`
	Seed          int64   `yaml:"seed" mapstructure:"seed"`
}

// OutputConfig contains result export settings
type OutputConfig struct {
	FluxCSV string `yaml:"flux_csv" mapstructure:"flux_csv"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Fit: FitConfig{
			Restarts:      10,
			MaxIterations: 200,
			ObjectiveTol:  1e-16,
			Seed:          0,
		},
		Output: OutputConfig{
			FluxCSV: "",
		},
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	homeDir, _ := os.UserHomeDir()
	viper.AddConfigPath(filepath.Join(homeDir, ".isoflux"))
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("ISOFLUX")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configFile, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Configuration saved to: %s\n", configFile)
	return nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Fit.Restarts <= 0 {
		return fmt.Errorf("fit restarts must be positive")
	}

	if config.Fit.MaxIterations <= 0 {
		return fmt.Errorf("fit max iterations must be positive")
	}

	if config.Fit.ObjectiveTol <= 0 {
		return fmt.Errorf("fit objective tolerance must be positive")
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".isoflux", "config.yaml"), nil
}
