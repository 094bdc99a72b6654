package config

import (
	"errors"  // Validation errors
	"fmt"     // Error formatting
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // Splitting broker lists
	"time"    // Durations

	"github.com/joho/godotenv" // For loading .env files
)

// Supported DB_DRIVER values
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory" // In-process, state is lost on exit
)

// ErrMissingJWTSecret is returned when JWT_SECRET is empty
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Config holds the application configuration
type Config struct {
	AppPort           string        // Application port
	IsProd            bool          // Is production environment
	LogLevel          string        // logrus level name
	DBDriver          string        // mysql, postgres or memory
	DBUser            string        // Database user
	DBPassword        string        // Database password
	DBHost            string        // Database host
	DBPort            string        // Database port
	DBName            string        // Database name
	DatabaseURL       string        // Postgres connection URL
	JWTSecret         string        // JWT secret key
	JWTTTL            time.Duration // Token lifetime
	RedisAddr         string        // Redis server address
	RedisPass         string        // Redis password
	RedisDB           int           // Redis database number
	KafkaBrokers      []string      // Empty disables event publishing
	KafkaTopic        string        // Topic for committed transactions
	EventBuffer       int           // Events waiting for the broker before new ones are dropped
	LedgerMaxAttempts int           // Attempts per credit or debit on transient aborts
	LoginRateLimit    int           // Login attempts per minute per email or IP
	ShutdownTimeout   time.Duration // Grace period for in-flight requests
}

// Load reads configuration from the environment, loading .env first if present
func Load() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present

	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "8080"),                        // Application port
		IsProd:      os.Getenv("IS_PROD") == "true",                    // Is production environment
		LogLevel:    getEnv("LOG_LEVEL", "info"),                       // Log level
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverMySQL)), // Store backend
		DBUser:      os.Getenv("DB_USER"),                              // Database user
		DBPassword:  os.Getenv("DB_PASSWORD"),                          // Database password
		DBHost:      getEnv("DB_HOST", "127.0.0.1"),                    // Database host
		DBPort:      getEnv("DB_PORT", "3306"),                         // Database port
		DBName:      os.Getenv("DB_NAME"),                              // Database name
		DatabaseURL: os.Getenv("DATABASE_URL"),                         // Postgres URL
		JWTSecret:   os.Getenv("JWT_SECRET"),                           // JWT secret key
		RedisAddr:   getEnv("REDIS_ADDR", "127.0.0.1:6379"),            // Redis server address
		RedisPass:   os.Getenv("REDIS_PASS"),                           // Redis password
		KafkaTopic:  getEnv("KAFKA_TOPIC", "wallet.transactions"),      // Event topic
	}
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.EventBuffer, err = getInt("EVENT_BUFFER", 1024); err != nil {
		return nil, err
	}
	if cfg.LedgerMaxAttempts, err = getInt("LEDGER_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.LoginRateLimit, err = getInt("LOGIN_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	switch cfg.DBDriver {
	case DriverMySQL, DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
