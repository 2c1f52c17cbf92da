package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string
	// NATSURL enables lifecycle event publishing when set.
	NATSURL           string
	NATSSubjectPrefix string
	// Device-control provider API.
	DeviceAPIBaseURL   string
	DeviceAPIAccessKey string
	DeviceAPISecretKey string
	DevicePackageName  string
	// CleanupPollInterval is the cleanup scheduler tick. Runtime-tunable via
	// the CLEANUP_POLL_INTERVAL dynamic config key.
	CleanupPollInterval time.Duration
}

func Load() (*Config, error) {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	pollSeconds, err := getEnvInt("CLEANUP_POLL_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		HTTPListenAddr:      getEnv("HTTP_LISTEN_ADDR", ":8090"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ServiceName:         getEnv("SERVICE_NAME", "fleet-api"),
		NATSURL:             getEnv("NATS_URL", ""),
		NATSSubjectPrefix:   getEnv("NATS_SUBJECT_PREFIX", "fleet.events"),
		DeviceAPIBaseURL:    getEnv("DEVICE_API_BASE_URL", ""),
		DeviceAPIAccessKey:  getEnv("DEVICE_API_ACCESS_KEY", ""),
		DeviceAPISecretKey:  getEnv("DEVICE_API_SECRET_KEY", ""),
		DevicePackageName:   getEnv("DEVICE_PKG_NAME", ""),
		CleanupPollInterval: time.Duration(pollSeconds) * time.Second,
	}

	return cfg, nil
}

// Validate checks the settings a given service cannot run without.
func (c *Config) Validate(service string) error {
	switch service {
	case "fleet-api":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
