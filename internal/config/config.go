package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath         string        `env:"DB_PATH" envDefault:"data/mapveto.db"`
	LogLevel       slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir         string        `env:"SPA_DIR" envDefault:"../web/dist"`
	BlobBaseURL    string        `env:"BLOB_BASE_URL" envDefault:""`
	ExpireInterval time.Duration `env:"EXPIRE_INTERVAL" envDefault:"1m"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
