package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"true"`

	// Room lifecycle knobs; defaults match sim.DefaultConfig.
	DisconnectGrace time.Duration `env:"DISCONNECT_GRACE" envDefault:"60s"`
	RoomIdleGrace   time.Duration `env:"ROOM_IDLE_GRACE" envDefault:"60s"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
