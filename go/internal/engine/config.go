package engine

import (
	"os"
	"strconv"
	"time"

	"github.com/andreyv/supplybot/go/internal/ratelimit"
)

// Config holds every engine knob. Defaults mirror the upstream quotas and the
// draft lifetime the marketplace enforces; tests compress the intervals.
type Config struct {
	DraftPollInterval        time.Duration
	DraftPollMaxAttempts     int
	DraftRecreateMaxAttempts int
	DraftRecreateBackoff     time.Duration
	DraftLifetime            time.Duration

	TimeslotPollInterval  time.Duration
	TimeslotWindowMaxDays int

	RateLimit ratelimit.Config

	OrderIDPollAttempts int
	OrderIDPollDelay    time.Duration

	ReadyDaysDefault int
}

func DefaultConfig() Config {
	return Config{
		DraftPollInterval:        10 * time.Second,
		DraftPollMaxAttempts:     1000,
		DraftRecreateMaxAttempts: 1000,
		DraftRecreateBackoff:     time.Second,
		DraftLifetime:            30 * time.Minute,

		TimeslotPollInterval:  3 * time.Second,
		TimeslotWindowMaxDays: 28,

		RateLimit: ratelimit.DefaultConfig(),

		OrderIDPollAttempts: 5,
		OrderIDPollDelay:    time.Second,

		ReadyDaysDefault: 1,
	}
}

// ConfigFromEnv reads the *_MS / count knobs with defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.DraftPollInterval = getEnvAsMillis("DRAFT_POLL_INTERVAL_MS", cfg.DraftPollInterval)
	cfg.DraftPollMaxAttempts = getEnvAsInt("DRAFT_POLL_MAX_ATTEMPTS", cfg.DraftPollMaxAttempts)
	cfg.DraftRecreateMaxAttempts = getEnvAsInt("DRAFT_RECREATE_MAX_ATTEMPTS", cfg.DraftRecreateMaxAttempts)
	cfg.DraftLifetime = getEnvAsMillis("DRAFT_LIFETIME_MS", cfg.DraftLifetime)

	cfg.TimeslotPollInterval = getEnvAsMillis("TIMESLOT_POLL_INTERVAL_MS", cfg.TimeslotPollInterval)
	cfg.TimeslotWindowMaxDays = getEnvAsInt("TIMESLOT_WINDOW_MAX_DAYS", cfg.TimeslotWindowMaxDays)

	cfg.RateLimit.MinInterval = getEnvAsMillis("RATE_LIMIT_SECOND_MS", cfg.RateLimit.MinInterval)
	cfg.RateLimit.PerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimit.PerMinute)
	cfg.RateLimit.PerHour = getEnvAsInt("RATE_LIMIT_PER_HOUR", cfg.RateLimit.PerHour)

	cfg.OrderIDPollAttempts = getEnvAsInt("ORDER_ID_POLL_ATTEMPTS", cfg.OrderIDPollAttempts)
	cfg.OrderIDPollDelay = getEnvAsMillis("ORDER_ID_POLL_DELAY_MS", cfg.OrderIDPollDelay)

	cfg.ReadyDaysDefault = getEnvAsInt("READY_DAYS_DEFAULT", cfg.ReadyDaysDefault)

	return cfg
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
