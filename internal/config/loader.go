package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read outside the RELAY_ prefix mapping.
const (
	EnvConfigFile = "RELAY_CONFIG"
	EnvLegacyURI  = "TA_WS_URI"
	envPrefix     = "RELAY_"
	dotEnvFile    = ".env"
	defaultPort   = "2053"
	suspectPort   = "2052"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if RELAY_CONFIG is set
//  3. TA_WS_URI for ws_uri
//  4. env (prefix RELAY_)
//
// A .env file in the working directory is loaded into the environment first;
// variables already set win over it.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, dotEnvFile, err)
	}

	base := New(ctx)
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if uri := os.Getenv(EnvLegacyURI); uri != "" {
		if err := k.Set("ws_uri", uri); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// RELAY_WS_URI -> ws_uri; underscores are kept to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.WSURI) == "":
		return fmt.Errorf("%w: ws_uri must be set (RELAY_WS_URI or %s)", ErrInvalidConfig, EnvLegacyURI)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	case strings.TrimSpace(c.RxName) == "" || strings.TrimSpace(c.TxName) == "":
		return fmt.Errorf("%w: rx_name and tx_name must not be empty", ErrInvalidConfig)
	}

	u, err := url.Parse(c.WSURI)
	if err != nil {
		return fmt.Errorf("%w: ws_uri: %w", ErrInvalidConfig, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: ws_uri scheme must be ws or wss, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: ws_uri has no host", ErrInvalidConfig)
	}
	return nil
}

// Warnings lists settings that are valid but probably wrong.
func (c *Config) Warnings() []string {
	var out []string
	if u, err := url.Parse(c.WSURI); err == nil && u.Port() == suspectPort {
		out = append(out, fmt.Sprintf("ws_uri uses port %s, but the origin's default websocket port is %s", suspectPort, defaultPort))
	}
	if c.TransmitMarker != "" && !strings.Contains(c.TxName, c.TransmitMarker) {
		out = append(out, fmt.Sprintf("tx_name %q does not contain transmit_marker %q; announce connections will be added to new matches", c.TxName, c.TransmitMarker))
	}
	if c.TransmitMarker != "" && strings.Contains(c.RxName, c.TransmitMarker) {
		out = append(out, fmt.Sprintf("rx_name %q contains transmit_marker %q; the relay will not be added to new matches", c.RxName, c.TransmitMarker))
	}
	return out
}
