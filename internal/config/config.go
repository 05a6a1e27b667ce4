package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// SlotOrder selects how the engine walks candidate slots.
const (
	SlotOrderNumber = "number" // slot_number ascending
	SlotOrderLRU    = "lru"    // least recently assigned first, to spread wear
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string

	JWTSecret string

	// Engine policy knobs.
	MinLeadTime          time.Duration // earliest a booking may start, relative to now
	MaxDuration          time.Duration // longest allowed booking interval
	CancellationDeadline time.Duration // confirmed bookings cannot be cancelled closer to start than this
	GracePeriod          time.Duration // buffer after end_time before the sweeper expires a booking
	OvertimeGrace        time.Duration // overtime shorter than this is not re-billed on exit
	PendingTimeout       time.Duration // pending bookings older than this are auto-cancelled
	SweepInterval        time.Duration
	AvailabilityTTL      time.Duration // TTL for cached availability previews
	SlotOrder            string
}

// Load reads the environment (and .env, if present) into a Config.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            getEnv("CURRENCY", "bdt"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		MinLeadTime:          getEnvDuration("MIN_LEAD_TIME", 15*time.Minute),
		MaxDuration:          getEnvDuration("MAX_DURATION", 72*time.Hour),
		CancellationDeadline: getEnvDuration("CANCELLATION_DEADLINE", time.Hour),
		GracePeriod:          getEnvDuration("GRACE_PERIOD", 30*time.Minute),
		OvertimeGrace:        getEnvDuration("OVERTIME_GRACE", 10*time.Minute),
		PendingTimeout:       getEnvDuration("PENDING_TIMEOUT", 30*time.Minute),
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		AvailabilityTTL:      getEnvDuration("AVAILABILITY_TTL", 30*time.Second),
		SlotOrder:            getEnv("SLOT_ORDER", SlotOrderNumber),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if mins, errInt := strconv.Atoi(v); errInt == nil {
			return time.Duration(mins) * time.Minute
		}
		log.Printf("Invalid duration for %s (%q), using default %s", key, v, fallback)
		return fallback
	}
	return d
}
