package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	AMQPURL            string
	OutboxQueue        string
	SagaTimeout        time.Duration
	StepTimeout        time.Duration
	SanctionedAccounts []string
	Env                string
}

// LoadConfig reads .env and returns the service configuration.
func LoadConfig() *Config {
	// The .env file may not exist in production; system env wins either way.
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on system env variables")
	}

	return &Config{
		Port:               getEnv("PORT", "3000"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AMQPURL:            getEnv("AMQP_URL", ""),
		OutboxQueue:        getEnv("OUTBOX_QUEUE", "saga.events"),
		SagaTimeout:        getDuration("SAGA_TIMEOUT", 60*time.Second),
		StepTimeout:        getDuration("STEP_TIMEOUT", 30*time.Second),
		SanctionedAccounts: getList("SANCTIONED_ACCOUNTS"),
		Env:                getEnv("ENV", "development"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in env, using fallback", "key", key, "value", value, "fallback", fallback)
		return fallback
	}
	return d
}

func getList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
