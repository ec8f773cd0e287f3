// Package config loads all runtime configuration from the environment so
// main stays lean. Empty Redis and Kafka settings are valid: the pipeline
// then runs on its in-memory fallbacks.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   Server
	Redis    Redis
	Kafka    Kafka
	Advisor  Advisor
	Pipeline Pipeline
}

type Server struct {
	Addr            string
	LogLevel        string
	ShutdownTimeout time.Duration
}

type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	// Brokers empty means no Kafka: the in-memory bus is used instead.
	Brokers    []string
	Partitions int32
}

type Advisor struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Pipeline struct {
	// BatchWorkers bounds concurrent analyses within one batch request.
	BatchWorkers   int
	ResultTTL      time.Duration
	SuggestionTTL  time.Duration
	StatsTTL       time.Duration
	RateLimit      int
	RateWindow     time.Duration
	ReportInterval time.Duration
}

// FromEnv builds the full configuration from environment variables,
// falling back to development defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envStr("PRIORITIZER_ADDR", ":8080"),
			LogLevel:        envStr("LOG_LEVEL", "info"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    envList("KAFKA_BROKERS"),
			Partitions: int32(envInt("KAFKA_PARTITIONS", 3)),
		},
		Advisor: Advisor{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   envStr("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: envDuration("ADVISOR_TIMEOUT", 15*time.Second),
		},
		Pipeline: Pipeline{
			BatchWorkers:   envInt("BATCH_WORKERS", 5),
			ResultTTL:      envDuration("RESULT_CACHE_TTL", time.Hour),
			SuggestionTTL:  envDuration("SUGGESTION_CACHE_TTL", 24*time.Hour),
			StatsTTL:       envDuration("STATS_TTL", 24*time.Hour),
			RateLimit:      envInt("RATE_LIMIT", 10),
			RateWindow:     envDuration("RATE_WINDOW", time.Minute),
			ReportInterval: envDuration("METRICS_REPORT_INTERVAL", 30*time.Second),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
