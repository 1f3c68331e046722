package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  string
	NotifyTopic   string
	JWTSigningKey string

	// IdempotencyWindow is the trailing span within which a repeated scan must
	// not create duplicate audit or violation rows for the same rule.
	IdempotencyWindow time.Duration

	// RankingCacheTTL bounds staleness of the cached trust registry ranking.
	RankingCacheTTL time.Duration
}

const (
	defaultIdempotencyWindow = 30 * 24 * time.Hour
	defaultRankingCacheTTL   = time.Minute
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TRUCONN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("TRUCONN_NOTIFY_TOPIC")
	if topic == "" {
		topic = "truconn.notifications"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	window := defaultIdempotencyWindow
	if raw := os.Getenv("TRUCONN_IDEMPOTENCY_WINDOW"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			window = parsed
		}
	}

	cacheTTL := defaultRankingCacheTTL
	if raw := os.Getenv("TRUCONN_RANKING_CACHE_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cacheTTL = parsed
		}
	}

	return Server{
		Addr:              addr,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		NotifyTopic:       topic,
		JWTSigningKey:     jwtSigningKey,
		IdempotencyWindow: window,
		RankingCacheTTL:   cacheTTL,
	}
}
