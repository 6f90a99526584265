package main

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// config is read from the environment.
type config struct {
	Addr        string        `env:"SAMPLE_ADDR" envDefault:":8080"`
	LogLevel    zapcore.Level `env:"SAMPLE_LOG_LEVEL" envDefault:"info"`
	JWTSecret   string        `env:"SAMPLE_JWT_SECRET" envDefault:"insecure-development-secret"`
	JWTIssuer   string        `env:"SAMPLE_JWT_ISSUER" envDefault:"sample"`
	CORSOrigins []string      `env:"SAMPLE_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	Timeout     time.Duration `env:"SAMPLE_REQUEST_TIMEOUT" envDefault:"10s"`
	MaxBody     int64         `env:"SAMPLE_MAX_BODY_BYTES" envDefault:"1048576"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Wrap(err, "parse environment")
	}
	return cfg, nil
}

func newLogger(cfg config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
