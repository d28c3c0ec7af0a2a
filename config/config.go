package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Matching  MatchingConfig
	Telemetry TelemetryConfig
	Connect   ConnectConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	CookieName         string
	CookieDomain       string
	CookieSecure       bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds session token signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the profile assets bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AssetsBucket         string
	PresignExpireMinutes int
}

// MatchingConfig holds scorer weights, thresholds and batch scheduling.
type MatchingConfig struct {
	WeightTag           float64
	WeightBudget        float64
	WeightDemographic   float64
	WeightAttendance    float64
	WeightRecency       float64
	StrongThreshold     float64
	WeakThreshold       float64
	MinScore            float64
	AttendanceReference float64
	RecencyHalfLife     time.Duration
	Workers             int
	ScheduleInterval    time.Duration
}

// TelemetryConfig holds OpenTelemetry settings. An empty endpoint disables tracing.
type TelemetryConfig struct {
	OTLPEndpoint string
}

// ConnectConfig bounds startup retries for Postgres and Redis.
type ConnectConfig struct {
	RetryInitial    time.Duration
	RetryMax        time.Duration
	RetryMaxElapsed time.Duration
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (DATABASE_URL), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			CookieName:         getEnv("SESSION_COOKIE_NAME", "plugcu_session"),
			CookieDomain:       getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure:       getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "plugcu"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AssetsBucket:         getEnv("AWS_S3_ASSETS_BUCKET", "plugcu-assets"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Matching: MatchingConfig{
			WeightTag:           getEnvFloat("MATCH_WEIGHT_TAG", 0.35),
			WeightBudget:        getEnvFloat("MATCH_WEIGHT_BUDGET", 0.25),
			WeightDemographic:   getEnvFloat("MATCH_WEIGHT_DEMOGRAPHIC", 0.20),
			WeightAttendance:    getEnvFloat("MATCH_WEIGHT_ATTENDANCE", 0.15),
			WeightRecency:       getEnvFloat("MATCH_WEIGHT_RECENCY", 0.05),
			StrongThreshold:     getEnvFloat("MATCH_STRONG_THRESHOLD", 0.7),
			WeakThreshold:       getEnvFloat("MATCH_WEAK_THRESHOLD", 0.3),
			MinScore:            getEnvFloat("MATCH_MIN_SCORE", 0.1),
			AttendanceReference: getEnvFloat("MATCH_ATTENDANCE_REFERENCE", 200),
			RecencyHalfLife:     getEnvDuration("MATCH_RECENCY_HALF_LIFE", 14*24*time.Hour),
			Workers:             getEnvInt("MATCH_WORKERS", 4),
			ScheduleInterval:    getEnvDuration("MATCH_SCHEDULE_INTERVAL", time.Hour),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""),
		},
		Connect: ConnectConfig{
			RetryInitial:    getEnvDuration("CONNECT_RETRY_INITIAL", 500*time.Millisecond),
			RetryMax:        getEnvDuration("CONNECT_RETRY_MAX", 10*time.Second),
			RetryMaxElapsed: getEnvDuration("CONNECT_RETRY_MAX_ELAPSED", 2*time.Minute),
		},
	}
	if cfg.Matching.Workers < 1 {
		return nil, fmt.Errorf("MATCH_WORKERS must be at least 1, got %d", cfg.Matching.Workers)
	}
	return cfg, nil
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed entries.
func (c ServerConfig) AllowedOrigins() []string {
	return splitTrim(c.CORSAllowedOrigins, ",")
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
