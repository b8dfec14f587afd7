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
	Session  SessionConfig
	Redis    RedisConfig
	Email    EmailConfig
	Worker   WorkerConfig
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
	PublicBaseURL  string // Scheme and host used to build emailed links
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	SecretKey             string
	ActivationTokenMaxAge time.Duration
	ResetTokenTTL         time.Duration
	ResetInvalidatePrior  bool
	CleanupInterval       time.Duration
	BcryptCost            int
	AuthRequestsPerMinute int
	FailureDelayBase      time.Duration
	FailureDelayJitter    time.Duration
}

type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EmailConfig selects the notification sink: "ses", "queue" or "log".
type EmailConfig struct {
	Sink        string
	AWSRegion   string
	FromAddress string
}

type WorkerConfig struct {
	Concurrency int
	MaxRetry    int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	secretKey := getEnv("SECRET_KEY", "")
	if secretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "accounts"),
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
			PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			SecretKey:             secretKey,
			ActivationTokenMaxAge: getEnvAsDuration("ACTIVATION_TOKEN_MAX_AGE", 72*time.Hour),
			ResetTokenTTL:         getEnvAsDuration("RESET_TOKEN_TTL", 1*time.Hour),
			ResetInvalidatePrior:  getEnvAsBool("RESET_INVALIDATE_PRIOR", false),
			CleanupInterval:       getEnvAsDuration("TOKEN_CLEANUP_INTERVAL", 1*time.Hour),
			BcryptCost:            getEnvAsInt("BCRYPT_COST", 12),
			AuthRequestsPerMinute: getEnvAsInt("AUTH_REQUESTS_PER_MINUTE", 10),
			FailureDelayBase:      getEnvAsDuration("AUTH_FAILURE_DELAY", 100*time.Millisecond),
			FailureDelayJitter:    getEnvAsDuration("AUTH_FAILURE_JITTER", 50*time.Millisecond),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "accounts_session"),
			TTL:        getEnvAsDuration("SESSION_TTL", 14*24*time.Hour),
			Secure:     getEnvAsBool("SESSION_SECURE", env == "production"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Sink:        getEnv("EMAIL_SINK", "log"),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", "no-reply@localhost"),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 5),
			MaxRetry:    getEnvAsInt("WORKER_MAX_RETRY", 5),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSecretKey(secretKey, env); err != nil {
		return nil, err
	}

	if cfg.Auth.ActivationTokenMaxAge <= 0 {
		return nil, fmt.Errorf("ACTIVATION_TOKEN_MAX_AGE must be positive (got %s)", cfg.Auth.ActivationTokenMaxAge)
	}
	if cfg.Auth.CleanupInterval <= 0 {
		return nil, fmt.Errorf("TOKEN_CLEANUP_INTERVAL must be positive (got %s)", cfg.Auth.CleanupInterval)
	}

	switch cfg.Email.Sink {
	case "ses", "queue", "log":
	default:
		return nil, fmt.Errorf("EMAIL_SINK must be one of ses, queue, log (got %q)", cfg.Email.Sink)
	}

	if env == "production" && cfg.Email.Sink == "log" {
		return nil, fmt.Errorf("EMAIL_SINK=log is not allowed in production")
	}

	return cfg, nil
}

// validateSecretKey enforces minimum strength for the token signing secret
func validateSecretKey(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SECRET_KEY must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SECRET_KEY cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c != nil && c.Server.Env == "production"
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
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
