package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig holds the service settings read from the environment.
type ServerConfig struct {
	GRPCAddr        string        `env:"POTENTIAL_GRPC_ADDR" envDefault:"localhost:7450"`
	MetricsAddr     string        `env:"POTENTIAL_METRICS_ADDR" envDefault:"localhost:9450"`
	DBPath          string        `env:"POTENTIAL_DB_PATH" envDefault:"potential.db"`
	LogLevel        string        `env:"POTENTIAL_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"POTENTIAL_LOG_FORMAT" envDefault:"text"`
	LogEvaluations  bool          `env:"POTENTIAL_LOG_EVALUATIONS" envDefault:"true"`
	MaxPoints       int           `env:"POTENTIAL_MAX_POINTS" envDefault:"1000000"`
	ShutdownTimeout time.Duration `env:"POTENTIAL_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServerConfig reads ServerConfig from the environment.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := ParseEnv(&cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.MaxPoints <= 0 {
		return ServerConfig{}, fmt.Errorf("parse env: POTENTIAL_MAX_POINTS must be positive, got %d", cfg.MaxPoints)
	}
	return cfg, nil
}
