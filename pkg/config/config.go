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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Scheduling    SchedulingConfig
	Notifications NotificationsConfig
	Cache         CacheConfig
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
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig carries the timetable policy switches. It is handed to the
// assignment service at construction time rather than read from globals, so a
// deployment's policy is fixed and visible in one place.
type SchedulingConfig struct {
	// AutoResolveConflicts rejects conflicting entry writes outright instead
	// of creating the entry and recording conflict rows for manual review.
	AutoResolveConflicts bool
	// NotifyOnChanges fans out notifications to affected teachers and classes
	// whenever an entry mutation records at least one conflict.
	NotifyOnChanges bool
	// AllowWeekendClasses permits SATURDAY/SUNDAY time slots in the catalog.
	AllowWeekendClasses bool
}

// NotificationsConfig tunes the in-process notification worker queue.
type NotificationsConfig struct {
	Enabled           bool
	WorkerConcurrency int
	BufferSize        int
	MaxRetries        int
	RetryDelay        time.Duration
}

// CacheConfig governs the redis-backed timetable read cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		AutoResolveConflicts: v.GetBool("SCHEDULING_AUTO_RESOLVE_CONFLICTS"),
		NotifyOnChanges:      v.GetBool("SCHEDULING_NOTIFY_ON_CHANGES"),
		AllowWeekendClasses:  v.GetBool("SCHEDULING_ALLOW_WEEKEND_CLASSES"),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:           v.GetBool("NOTIFICATIONS_ENABLED"),
		WorkerConcurrency: v.GetInt("NOTIFICATIONS_WORKER_CONCURRENCY"),
		BufferSize:        v.GetInt("NOTIFICATIONS_BUFFER_SIZE"),
		MaxRetries:        v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_TIMETABLE_CACHE"),
		TTL:     parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 5*time.Minute),
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
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_AUTO_RESOLVE_CONFLICTS", false)
	v.SetDefault("SCHEDULING_NOTIFY_ON_CHANGES", true)
	v.SetDefault("SCHEDULING_ALLOW_WEEKEND_CLASSES", false)

	v.SetDefault("NOTIFICATIONS_ENABLED", true)
	v.SetDefault("NOTIFICATIONS_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_TIMETABLE_CACHE", false)
	v.SetDefault("TIMETABLE_CACHE_TTL", "5m")
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
