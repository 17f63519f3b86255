package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries everything the service binaries read from the environment.
// A missing .env file is fine; container deployments inject variables directly.
type Config struct {
	HTTPAddr      string
	PostgresURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KafkaBrokers  []string
	JWTSecret     string
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		PostgresURL:   postgresURL(),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       0,
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
	}
}

func postgresURL() string {
	if url := os.Getenv("POSTGRES_URL"); url != "" {
		return url
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnv("POSTGRES_USER", "postgres"),
		getEnv("POSTGRES_PASSWORD", "postgres"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB", "everypoll"),
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
