package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Alert    AlertConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type AuthConfig struct {
	TokenSecret   string
	TokenLifetime time.Duration
}

// SecurityConfig holds the login monitor parameters.
type SecurityConfig struct {
	MaxFailedAttempts        int
	BlockWindow              time.Duration
	SuspiciousIPChangeWindow time.Duration
	MaxConcurrentSessions    int
	SessionIdleTimeout       time.Duration
	AttemptRetention         time.Duration
	SweepInterval            time.Duration
	TrustedProxies           []string
}

// AlertConfig holds the SES security alert settings. Alerts are disabled
// when the addresses are unset.
type AlertConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	ToAddress   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	tokenSecret := getEnv("TOKEN_SECRET", "")
	if tokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}
	if len(tokenSecret) < 32 {
		return nil, fmt.Errorf("TOKEN_SECRET must be at least 32 characters (got %d)", len(tokenSecret))
	}

	alertFrom := getEnv("ALERT_FROM_ADDRESS", "")
	alertTo := getEnv("ALERT_TO_ADDRESS", "")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "labguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      getEnv("ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			TokenSecret:   tokenSecret,
			TokenLifetime: getEnvAsDuration("TOKEN_LIFETIME", 8*time.Hour),
		},
		Security: SecurityConfig{
			MaxFailedAttempts:        getEnvAsInt("SECURITY_MAX_FAILED_ATTEMPTS", 5),
			BlockWindow:              getEnvAsDuration("SECURITY_BLOCK_WINDOW", 15*time.Minute),
			SuspiciousIPChangeWindow: getEnvAsDuration("SECURITY_SUSPICIOUS_IP_CHANGE_WINDOW", 1*time.Hour),
			MaxConcurrentSessions:    getEnvAsInt("SECURITY_MAX_CONCURRENT_SESSIONS", 3),
			SessionIdleTimeout:       getEnvAsDuration("SECURITY_SESSION_IDLE_TIMEOUT", 30*time.Minute),
			AttemptRetention:         getEnvAsDuration("SECURITY_ATTEMPT_RETENTION", 30*24*time.Hour),
			SweepInterval:            getEnvAsDuration("SECURITY_SWEEP_INTERVAL", 5*time.Minute),
			TrustedProxies:           splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		},
		Alert: AlertConfig{
			Enabled:     alertFrom != "" && alertTo != "",
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: alertFrom,
			ToAddress:   alertTo,
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Security.MaxFailedAttempts < 1 {
		return nil, fmt.Errorf("SECURITY_MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if cfg.Security.MaxConcurrentSessions < 1 {
		return nil, fmt.Errorf("SECURITY_MAX_CONCURRENT_SESSIONS must be at least 1")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
