package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Payment   PaymentConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig

	PricingFile string
}

// PaymentConfig selects and configures the payment gateway.
type PaymentConfig struct {
	Provider  string
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// RateLimitConfig bounds checkout order creation per hospital.
type RateLimitConfig struct {
	CheckoutRate  float64
	CheckoutBurst int
}

// SchedulerConfig drives the stale checkout sweeps.
type SchedulerConfig struct {
	Enabled      bool
	RunInterval  time.Duration
	AbandonAfter time.Duration
	StalledAfter time.Duration
	BatchSize    int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "medisub"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "medisub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "medisub.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		Payment: PaymentConfig{
			Provider:  strings.ToLower(getenv("PAYMENT_PROVIDER", "sandbox")),
			BaseURL:   strings.TrimRight(getenv("PAYMENT_BASE_URL", "https://api.razorpay.com"), "/"),
			KeyID:     strings.TrimSpace(getenv("PAYMENT_KEY_ID", "")),
			KeySecret: strings.TrimSpace(getenv("PAYMENT_KEY_SECRET", "")),
			Timeout:   time.Duration(getenvInt("PAYMENT_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			CheckoutRate:  getenvFloat("CHECKOUT_RATE_PER_SECOND", 0.2),
			CheckoutBurst: getenvInt("CHECKOUT_BURST", 5),
		},
		Scheduler: SchedulerConfig{
			Enabled:      getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:  getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			AbandonAfter: getenvDuration("CHECKOUT_ABANDON_AFTER", 30*time.Minute),
			StalledAfter: getenvDuration("CHECKOUT_VERIFY_STALLED_AFTER", 10*time.Minute),
			BatchSize:    getenvInt("SCHEDULER_BATCH_SIZE", 50),
		},
		PricingFile: strings.TrimSpace(getenv("MEDISUB_PRICING_FILE", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
