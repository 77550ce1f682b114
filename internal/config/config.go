package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Remote marketplace API
	APIBaseURL string `env:"AGRICHAT_API_BASE_URL,required"`
	AuthToken  string `env:"AGRICHAT_AUTH_TOKEN,required"`

	// Local gateway
	ListenAddr string `env:"AGRICHAT_LISTEN_ADDR" envDefault:":8480"`

	// Origins allowed to talk to the gateway (the UI dev server, usually)
	AllowedOrigins []string `env:"AGRICHAT_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Initial route parameter carried over from a deep link: a room id,
	// an expert id, or empty for "most recent conversation".
	InitialRef string `env:"AGRICHAT_INITIAL_REF"`

	// Logging
	LogLevel string `env:"AGRICHAT_LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return cfg, nil
}
