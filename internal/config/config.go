package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	DefaultOrgID int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Metrics MetricsConfig

	Backfill BackfillConfig
}

// MetricsConfig configures the OTLP metrics exporter.
type MetricsConfig struct {
	Enabled  bool
	Exporter string
	Endpoint string
}

// BackfillConfig carries the ledger backfill tool parameters.
type BackfillConfig struct {
	OrganizationID    string
	BatchSize         int
	ThreadCount       int
	DryRun            bool
	IncludeTerminated bool
	OutputFile        string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "creditcore"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DefaultOrgID: getenvInt64("DEFAULT_ORG", 0),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Metrics: MetricsConfig{
			Enabled:  getenvBool("METRICS_ENABLED", false),
			Exporter: strings.ToLower(getenv("METRICS_EXPORTER", "grpc")),
			Endpoint: strings.TrimSpace(getenv("METRICS_ENDPOINT", "localhost:4317")),
		},

		Backfill: BackfillConfig{
			OrganizationID:    strings.TrimSpace(getenv("BACKFILL_ORGANIZATION_ID", "")),
			BatchSize:         getenvInt("BACKFILL_BATCH_SIZE", 100),
			ThreadCount:       getenvInt("BACKFILL_THREAD_COUNT", 4),
			DryRun:            getenvBool("BACKFILL_DRY_RUN", true),
			IncludeTerminated: getenvBool("BACKFILL_INCLUDE_TERMINATED", false),
			OutputFile:        strings.TrimSpace(getenv("BACKFILL_OUTPUT_FILE", "")),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
