package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env            string
	Port           string
	BackendURL     string
	RequestTimeout time.Duration
	PollInterval   time.Duration

	RedisURL    string
	RedisPass   string
	RedisDB     int
	InflightTTL time.Duration

	ViewJWTSecret string
	ViewTokenTTL  time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:           getenv("ENV", "development"),
		Port:          getenv("PORT", "8080"),
		BackendURL:    strings.TrimRight(getenv("BACKEND_URL", "http://localhost:8000"), "/"),
		RedisURL:      os.Getenv("REDIS_URL"),
		RedisPass:     os.Getenv("REDIS_PASSWORD"),
		ViewJWTSecret: os.Getenv("VIEW_JWT_SECRET"),
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.InflightTTL, err = durationEnv("INFLIGHT_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ViewTokenTTL, err = durationEnv("VIEW_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %v", v, err)
		}
		cfg.RedisDB = db
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL must not be empty")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", k, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", k, v)
	}
	return d, nil
}
