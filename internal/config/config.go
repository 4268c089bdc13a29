// Package config loads the CLI's environment configuration. A .env file in
// the working directory is honoured when present.
package config

import (
	"encoding/hex"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config carries everything the CLI needs to wire the library together.
type Config struct {
	AppName        string        `env:"APP_NAME" envDefault:"Auth Client"`
	IssuerURL      string        `env:"AUTH_ISSUER_URL" envDefault:"http://localhost:8080/api/auth"`
	SessionFile    string        `env:"AUTH_SESSION_FILE" envDefault:".authcli/session.json"`
	SessionSecret  string        `env:"AUTH_SESSION_SECRET"` // hex, 32 bytes
	RedisURL       string        `env:"AUTH_REDIS_URL"`
	RequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT" envDefault:"10s"`
	RefreshMargin  time.Duration `env:"AUTH_REFRESH_MARGIN" envDefault:"60s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "[config.Load] parse environment")
	}
	if _, err := cfg.SecretKey(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SecretKey decodes SessionSecret into a secretbox key. Returns (nil, nil)
// when no secret is configured.
func (c Config) SecretKey() (*[32]byte, error) {
	if c.SessionSecret == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.SessionSecret)
	if err != nil {
		return nil, errors.Wrap(err, "[Config.SecretKey] decode AUTH_SESSION_SECRET")
	}
	if len(raw) != 32 {
		return nil, errors.Errorf("[Config.SecretKey] AUTH_SESSION_SECRET must be 32 bytes, got %d", len(raw))
	}
	key := &[32]byte{}
	copy(key[:], raw)
	return key, nil
}
