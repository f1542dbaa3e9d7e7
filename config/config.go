// Package config loads client configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment-driven settings for the client.
type Config struct {
	ServerURL      string        `env:"SERVER_URL" envDefault:"http://localhost:5000"`
	DataDir        string        `env:"DATA_DIR" envDefault:".alphachat"`
	DevMode        bool          `env:"DEV_MODE" envDefault:"false"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	HealthInterval time.Duration `env:"HEALTH_INTERVAL" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"LOG_FILE"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
