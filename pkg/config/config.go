package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Notifier  NotifierConfig
	Approvals ApprovalsConfig
	Windows   WindowsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// NotifierConfig describes the outbound approval-notification providers.
// A channel with an empty base URL is treated as unconfigured and every
// delivery on it is recorded as skipped.
type NotifierConfig struct {
	EmailBaseURL    string
	EmailAPIKey     string
	WhatsAppBaseURL string
	WhatsAppAPIKey  string
	Timeout         time.Duration
	RetryDelay      time.Duration
}

// ApprovalsConfig bounds exception windows and tunes the mirror outbox worker.
type ApprovalsConfig struct {
	MinWindowMinutes    int
	MaxWindowMinutes    int
	OutboxDrainInterval time.Duration
}

// WindowsConfig tunes the lock/window decision read path.
type WindowsConfig struct {
	DecisionCacheTTL time.Duration
	CacheEnabled     bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Notifier = NotifierConfig{
		EmailBaseURL:    v.GetString("NOTIFIER_EMAIL_BASE_URL"),
		EmailAPIKey:     v.GetString("NOTIFIER_EMAIL_API_KEY"),
		WhatsAppBaseURL: v.GetString("NOTIFIER_WHATSAPP_BASE_URL"),
		WhatsAppAPIKey:  v.GetString("NOTIFIER_WHATSAPP_API_KEY"),
		Timeout:         parseDuration(v.GetString("NOTIFIER_TIMEOUT"), 5*time.Second),
		RetryDelay:      parseDuration(v.GetString("NOTIFIER_RETRY_DELAY"), 500*time.Millisecond),
	}

	cfg.Approvals = ApprovalsConfig{
		MinWindowMinutes:    v.GetInt("APPROVAL_MIN_WINDOW_MINUTES"),
		MaxWindowMinutes:    v.GetInt("APPROVAL_MAX_WINDOW_MINUTES"),
		OutboxDrainInterval: parseDuration(v.GetString("APPROVAL_OUTBOX_DRAIN_INTERVAL"), 15*time.Second),
	}

	cfg.Windows = WindowsConfig{
		DecisionCacheTTL: parseDuration(v.GetString("DECISION_CACHE_TTL"), 30*time.Second),
		CacheEnabled:     v.GetBool("ENABLE_DECISION_CACHE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "assessment_engine")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("NOTIFIER_EMAIL_BASE_URL", "")
	v.SetDefault("NOTIFIER_EMAIL_API_KEY", "")
	v.SetDefault("NOTIFIER_WHATSAPP_BASE_URL", "")
	v.SetDefault("NOTIFIER_WHATSAPP_API_KEY", "")
	v.SetDefault("NOTIFIER_TIMEOUT", "5s")
	v.SetDefault("NOTIFIER_RETRY_DELAY", "500ms")

	v.SetDefault("APPROVAL_MIN_WINDOW_MINUTES", 5)
	v.SetDefault("APPROVAL_MAX_WINDOW_MINUTES", 1440)
	v.SetDefault("APPROVAL_OUTBOX_DRAIN_INTERVAL", "15s")

	v.SetDefault("DECISION_CACHE_TTL", "30s")
	v.SetDefault("ENABLE_DECISION_CACHE", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
