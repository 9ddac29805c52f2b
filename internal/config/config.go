package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/spend/internal/model"
)

// FileName is the config file inside the config directory.
const FileName = "config.yaml"

// Config represents the top-level config.yaml configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Register RegisterConfig `yaml:"register"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig locates the expense API and its anti-forgery conventions.
type APIConfig struct {
	BaseURL            string        `yaml:"base_url"`
	CSRFHeader         string        `yaml:"csrf_header"`          // request header echoing the token
	CSRFResponseHeader string        `yaml:"csrf_response_header"` // response header carrying a fresh token
	CSRFCookie         string        `yaml:"csrf_cookie"`          // cookie carrying a fresh token
	Timeout            time.Duration `yaml:"timeout"`
}

// SessionConfig controls the credential cookie.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	LogoutPath string `yaml:"logout_path"` // empty disables the server-side logout call
}

// RegisterConfig selects the registration payload layout.
type RegisterConfig struct {
	Variant model.RegistrationVariant `yaml:"variant"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads a config.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadDir reads <dir>/config.yaml, falling back to defaults when absent.
func LoadDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config pointing at the hosted API.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:            "https://millennium.loaywaleed.tech/api/v1",
			CSRFHeader:         "X-CSRF-Token",
			CSRFResponseHeader: "X-CSRF-Token",
			CSRFCookie:         "csrftoken",
			Timeout:            30 * time.Second,
		},
		Session: SessionConfig{
			CookieName: "ecomm-refresh",
			LogoutPath: "/auth/logout",
		},
		Register: RegisterConfig{
			Variant: model.RegistrationSplit,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// DefaultDir returns the per-user config directory.
func DefaultDir() (string, error) {
	if dir := os.Getenv("SPEND_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(base, "spend"), nil
}
