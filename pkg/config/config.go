// Package config loads service configuration from QREPLAY_* environment
// variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the qreplay service configuration.
type Config struct {
	Addr         string      `env:"QREPLAY_ADDR" envDefault:":8080"`
	GRPCAddr     string      `env:"QREPLAY_GRPC_ADDR"`
	CorpusFile   string      `env:"QREPLAY_CORPUS_FILE"`
	CorpusName   string      `env:"QREPLAY_CORPUS_NAME" envDefault:"default"`
	DatabaseURL  string      `env:"QREPLAY_DATABASE_URL"`
	RedisAddr    string      `env:"QREPLAY_REDIS_ADDR"`
	DeviceFile   string      `env:"QREPLAY_DEVICE_FILE"`
	ShotsRoundup bool        `env:"QREPLAY_SHOTS_ROUNDUP" envDefault:"true"`
	AtomicSample bool        `env:"QREPLAY_ATOMIC_SAMPLE" envDefault:"false"`
	QubitMapping map[int]int `env:"QREPLAY_QUBIT_MAPPING" envSeparator:"," envKeyValSeparator:":"`

	LogLevel    string `env:"QREPLAY_LOG_LEVEL" envDefault:"info"`
	LogEncoding string `env:"QREPLAY_LOG_ENCODING" envDefault:"json"`

	OTelEndpoint    string  `env:"QREPLAY_OTEL_ENDPOINT"`
	OTelStdout      bool    `env:"QREPLAY_OTEL_STDOUT" envDefault:"false"`
	OTelSampleRatio float64 `env:"QREPLAY_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses a Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
