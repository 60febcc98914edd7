package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Server   Server
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string
	AdminToken string
}

// PostgresConfig configures the document store connection.
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the compliance-status read cache.
// An empty URL disables caching entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	StatusTTL    time.Duration
}

// KafkaConfig configures the audit fan-out publisher.
// Empty Brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("CUSTODIA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminToken := os.Getenv("CUSTODIA_ADMIN_TOKEN")
	if adminToken == "" {
		// Use a default for development - must be overridden in production
		adminToken = "dev-admin-token-change-in-production"
	}

	topic := os.Getenv("CUSTODIA_KAFKA_TOPIC")
	if topic == "" {
		topic = "custodia.audit.events"
	}

	var brokers []string
	if raw := os.Getenv("CUSTODIA_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Config{
		Server: Server{
			Addr:       addr,
			AdminToken: adminToken,
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("CUSTODIA_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("CUSTODIA_REDIS_URL"),
			PoolSize:     envInt("CUSTODIA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CUSTODIA_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			StatusTTL:    envDuration("CUSTODIA_STATUS_CACHE_TTL", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
