package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the queue service. Every field has a
// sensible default so the binary starts with nothing but DB_DSN set.
type Config struct {
	Port        string
	DatabaseURL string

	RateLimitPerMinute int
	RateLimitBurst     int

	// HoldReactivatePriority bumps a ticket to the priority lane when it
	// is recalled from the hold pool.
	HoldReactivatePriority bool

	// DailyResetCron, when non-empty, schedules an automatic queue reset
	// (cron expression, server local time). Empty disables the schedule.
	DailyResetCron string

	NotifyInterval  time.Duration
	NotifyBatchSize int

	SessionHeader string

	OTLPEndpoint string
}

func Load() Config {
	return Config{
		Port:                   readString("PORT", "8080"),
		DatabaseURL:            readString("DB_DSN", ""),
		RateLimitPerMinute:     readInt("RATE_LIMIT_PER_MINUTE", 240),
		RateLimitBurst:         readInt("RATE_LIMIT_BURST", 40),
		HoldReactivatePriority: readBool("HOLD_REACTIVATE_PRIORITY", true),
		DailyResetCron:         readString("DAILY_RESET_CRON", ""),
		NotifyInterval:         readDurationSeconds("NOTIFY_INTERVAL_SECONDS", 2*time.Second),
		NotifyBatchSize:        readInt("NOTIFY_BATCH_SIZE", 100),
		SessionHeader:          readString("SESSION_HEADER", "X-Session-ID"),
		OTLPEndpoint:           readString("OTLP_ENDPOINT", ""),
	}
}

func readString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func readBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func readDurationSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
