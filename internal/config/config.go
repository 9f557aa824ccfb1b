package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	appDirName     = "carbon"
	configFileName = "config.yaml"
	logFileName    = "carbon.log"

	defaultMaxConcurrent = 3
	defaultQuality       = "best"
)

// Config holds application configuration
type Config struct {
	OutputDirectory        string `yaml:"output_directory"`         // Where converted files land
	MaxConcurrentDownloads int    `yaml:"max_concurrent_downloads"` // Admission gate size
	DefaultQuality         string `yaml:"default_quality"`          // best/1080p/720p/480p
	AutoConvert            bool   `yaml:"auto_convert"`             // Run the convert phase after download
}

// Default returns the configuration written on first run
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		OutputDirectory:        filepath.Join(home, "Videos", appDirName),
		MaxConcurrentDownloads: defaultMaxConcurrent,
		DefaultQuality:         defaultQuality,
		AutoConvert:            true,
	}
}

// Dir returns the application config directory, creating it if needed.
// XDG_CONFIG_HOME wins over ~/.config.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home dir: %w", err)
		}
		base = filepath.Join(home, ".config")
	}

	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the config file location
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LogPath returns the log file location. The TUI owns the terminal, so
// logs go to a file.
func LogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, logFileName), nil
}

// Load reads the config file, writing the defaults on first run. The
// output directory is created if missing and the concurrency limit is
// normalized to at least 1.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := Save(cfg); err != nil {
			return nil, err
		}
		return finalize(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return finalize(&cfg)
}

// Save writes the config file
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func finalize(cfg *Config) (*Config, error) {
	if cfg.OutputDirectory == "" {
		cfg.OutputDirectory = Default().OutputDirectory
	}
	if cfg.MaxConcurrentDownloads < 1 {
		cfg.MaxConcurrentDownloads = defaultMaxConcurrent
	}
	if cfg.DefaultQuality == "" {
		cfg.DefaultQuality = defaultQuality
	}

	if err := os.MkdirAll(cfg.OutputDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return cfg, nil
}
