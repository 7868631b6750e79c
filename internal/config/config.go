// Package config содержит логику чтения конфигурации сервиса звёздного неба.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	defaultRunAddress    = "localhost:8080"
	defaultCreateTimeout = 5 * time.Second
	defaultLogLevel      = "info"
)

// Config содержит параметры конфигурации сервиса звёздного неба.
type Config struct {
	RunAddress           string        `env:"RUN_ADDRESS"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	PaymentSystemAddress string        `env:"PAYMENT_SYSTEM_ADDRESS"`
	RedisURL             string        `env:"REDIS_URL"`
	AuthSecret           string        `env:"AUTH_SECRET"`
	CreateTimeout        time.Duration `env:"CREATE_TIMEOUT"`
	LogLevel             string        `env:"LOG_LEVEL"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных
// окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	fromEnv := &Config{}
	if err := env.Parse(fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentSystemAddress, "p", "", "payment provider address")
	flag.StringVar(&cfg.RedisURL, "b", "", "redis URL for star events")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for auth cookies (random per process when empty)")
	flag.DurationVar(&cfg.CreateTimeout, "t", defaultCreateTimeout, "star creation timeout")
	flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")

	flag.Parse()

	override(&cfg.RunAddress, fromEnv.RunAddress)
	override(&cfg.DatabaseURI, fromEnv.DatabaseURI)
	override(&cfg.PaymentSystemAddress, fromEnv.PaymentSystemAddress)
	override(&cfg.RedisURL, fromEnv.RedisURL)
	override(&cfg.AuthSecret, fromEnv.AuthSecret)
	override(&cfg.LogLevel, fromEnv.LogLevel)
	if fromEnv.CreateTimeout > 0 {
		cfg.CreateTimeout = fromEnv.CreateTimeout
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	if c.CreateTimeout <= 0 {
		return fmt.Errorf("create timeout must be positive, got %s", c.CreateTimeout)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

// ZapLevel возвращает уровень логирования.
func (c *Config) ZapLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
