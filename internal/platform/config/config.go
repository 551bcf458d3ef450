// Package config assembles the auction core's configuration from
// environment variables, the one place a struct is justified for what is
// otherwise a handful of os.Getenv reads scattered across each cmd/main.go,
// failing fast on a missing required variable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived setting the core reads. Recognized
// variables are the ones the request facade and scheduler need plus the
// connection strings each service already uses.
type Config struct {
	// DurableStoreURL is the Postgres connection string (BID_DB_URL).
	DurableStoreURL string
	// LiveStoreURL is the Redis connection string (REDIS_URL).
	LiveStoreURL string
	// RabbitMQURL is the AMQP connection string (RABBITMQ_URL).
	RabbitMQURL string

	// JWTPublicKeyPath points at the PEM public key used to validate
	// bearer tokens issued by the (out-of-scope) auth service.
	JWTPublicKeyPath string
	// JWTIssuer is the expected `iss` claim.
	JWTIssuer string

	// SchedulerTickInterval is how often the lifecycle scheduler ticks
	// (scheduler_tick_ms, default 2000ms).
	SchedulerTickInterval time.Duration
	// PaymentWindow is the guarantee-payment deadline after close
	// (payment_window_minutes, default 5m).
	PaymentWindow time.Duration
	// DefaultMinIncrementPercent is read from default_min_increment_percent
	// (default 10.00). No component reads this field: an auction with no
	// increment of its own falls back to domain.DefaultMinIncrementBasisPoints.
	DefaultMinIncrementPercent float64
	// LiveStateTTLGrace is added on top of an auction's remaining duration
	// when computing the live-store key TTL (live_state_ttl_grace_seconds,
	// default 3600s).
	LiveStateTTLGrace time.Duration
}

// Load reads Config from the environment, exiting the process via the
// supplied fail function (os.Exit(1) in production, a test helper in
// tests) when a required variable is missing. An optional numeric variable
// that does not parse falls back to its default.
func Load(fail func(msg string, args ...any)) *Config {
	cfg := &Config{
		DurableStoreURL:            mustEnv(fail, "BID_DB_URL"),
		LiveStoreURL:               mustEnv(fail, "REDIS_URL"),
		RabbitMQURL:                mustEnv(fail, "RABBITMQ_URL"),
		JWTPublicKeyPath:           mustEnv(fail, "JWT_PUBLIC_KEY_PATH"),
		JWTIssuer:                  mustEnv(fail, "JWT_ISSUER"),
		SchedulerTickInterval:      envDurationMs("SCHEDULER_TICK_MS", 2000),
		PaymentWindow:              envDurationMinutes("PAYMENT_WINDOW_MINUTES", 5),
		DefaultMinIncrementPercent: envFloat("DEFAULT_MIN_INCREMENT_PERCENT", 10.00),
		LiveStateTTLGrace:          envDurationSeconds("LIVE_STATE_TTL_GRACE_SECONDS", 3600),
	}
	return cfg
}

func mustEnv(fail func(msg string, args ...any), key string) string {
	v := os.Getenv(key)
	if v == "" {
		fail(fmt.Sprintf("%s is not set", key))
	}
	return v
}

func envDurationMs(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Millisecond
}

func envDurationMinutes(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Minute
}

func envDurationSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
