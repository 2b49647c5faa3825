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
	Redis    RedisConfig
	Storage  StorageConfig
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
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	SessionSecret        string
	SessionExpiry        time.Duration
	OperatorUsername     string
	OperatorPasswordHash string
	OperatorTOTPSecret   string
	LockoutThreshold     int
	LockoutCooldown      time.Duration
	LoginCheckDelay      time.Duration
	LoginCheckJitter     time.Duration
	LockoutStore         string // "postgres" or "redis"
	CleanupInterval      time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Enabled              bool
	Endpoint             string
	Region               string
	Bucket               string
	AccessKeyID          string
	SecretAccessKey      string
	UseSSL               bool
	MaxUploadBytes       int64
	OrphanCleanupEnabled bool
	OrphanRetention      time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	secret := getEnv("SESSION_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "molar"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			SessionSecret:        secret,
			SessionExpiry:        getEnvAsDuration("SESSION_EXPIRY", 12*time.Hour),
			OperatorUsername:     getEnv("OPERATOR_USERNAME", "dentist"),
			OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
			OperatorTOTPSecret:   getEnv("OPERATOR_TOTP_SECRET", ""),
			LockoutThreshold:     getEnvAsInt("LOCKOUT_THRESHOLD", 6),
			LockoutCooldown:      getEnvAsDuration("LOCKOUT_COOLDOWN", 2*time.Hour),
			LoginCheckDelay:      getEnvAsDuration("LOGIN_CHECK_DELAY", 1*time.Second),
			LoginCheckJitter:     getEnvAsDuration("LOGIN_CHECK_JITTER", 0),
			LockoutStore:         strings.ToLower(getEnv("LOCKOUT_STORE", "postgres")),
			CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Enabled:              getEnvAsBool("S3_ENABLED", false),
			Endpoint:             getEnv("S3_ENDPOINT", ""),
			Region:               getEnv("S3_REGION", "us-east-1"),
			Bucket:               getEnv("S3_BUCKET", "molar-attachments"),
			AccessKeyID:          getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("S3_SECRET_ACCESS_KEY", ""),
			UseSSL:               getEnvAsBool("S3_USE_SSL", true),
			MaxUploadBytes:       int64(getEnvAsInt("S3_MAX_UPLOAD_BYTES", 10*1024*1024)),
			OrphanCleanupEnabled: getEnvAsBool("ORPHAN_CLEANUP_ENABLED", false),
			OrphanRetention:      getEnvAsDuration("ORPHAN_RETENTION", 30*24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(secret, env); err != nil {
		return nil, err
	}

	if err := validateAuth(&cfg.Auth, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSessionSecret enforces minimum security standards for the session signing secret
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example", "dashboard",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func validateAuth(a *AuthConfig, env string) error {
	if a.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1 (got %d)", a.LockoutThreshold)
	}
	if a.LockoutCooldown <= 0 {
		return fmt.Errorf("LOCKOUT_COOLDOWN must be positive")
	}
	if a.LoginCheckDelay < 0 || a.LoginCheckJitter < 0 {
		return fmt.Errorf("LOGIN_CHECK_DELAY and LOGIN_CHECK_JITTER cannot be negative")
	}
	switch a.LockoutStore {
	case "postgres", "redis":
	default:
		return fmt.Errorf("LOCKOUT_STORE must be postgres or redis (got %q)", a.LockoutStore)
	}
	// The legacy fixed operator password is only tolerated outside production.
	if env == "production" && a.OperatorPasswordHash == "" {
		return fmt.Errorf("OPERATOR_PASSWORD_HASH is required in production")
	}
	return nil
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

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
