package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPEND_"

// envOverrides holds the settings that may come from the environment.
type envOverrides struct {
	// APIURL overrides api.base_url.
	// Environment variable: SPEND_API_URL
	APIURL string `koanf:"SPEND_API_URL"`

	// CSRFHeader overrides api.csrf_header.
	// Environment variable: SPEND_CSRF_HEADER
	CSRFHeader string `koanf:"SPEND_CSRF_HEADER"`

	// LogLevel overrides logging.level.
	// Environment variable: SPEND_LOG_LEVEL
	LogLevel string `koanf:"SPEND_LOG_LEVEL"`

	// LogJSON overrides logging.json.
	// Environment variable: SPEND_LOG_JSON
	LogJSON string `koanf:"SPEND_LOG_JSON"`
}

// ApplyEnv overlays SPEND_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", nil), nil); err != nil {
		return fmt.Errorf("loading config from environment: %w", err)
	}

	var ov envOverrides
	if err := k.UnmarshalWithConf("", &ov, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return fmt.Errorf("unmarshaling environment config: %w", err)
	}

	if ov.APIURL != "" {
		cfg.API.BaseURL = strings.TrimRight(ov.APIURL, "/")
	}
	if ov.CSRFHeader != "" {
		cfg.API.CSRFHeader = ov.CSRFHeader
	}
	if ov.LogLevel != "" {
		cfg.Logging.Level = ov.LogLevel
	}
	switch strings.ToLower(ov.LogJSON) {
	case "1", "true", "yes":
		cfg.Logging.JSON = true
	case "0", "false", "no":
		cfg.Logging.JSON = false
	}
	return nil
}
