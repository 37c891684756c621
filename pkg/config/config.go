package config

import (
	"errors"
	"io/fs"
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

	Backend  BackendConfig
	Session  SessionConfig
	Engine   EngineConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Audit    AuditConfig
	CORS     CORSConfig
	Log      LogConfig
}

// BackendConfig points the console at the upstream enrollment REST API.
type BackendConfig struct {
	BaseURL            string
	Timeout            time.Duration
	ResilientEndpoints []string
}

// SessionConfig supplies the credential used when no caller token is forwarded.
type SessionConfig struct {
	StaticToken  string
	DefaultActor string
	// Required rejects API calls that carry no credential at all.
	Required     bool
}

// EngineConfig tunes the enrollment reconciliation engine.
type EngineConfig struct {
	FallbackSampleSize         int
	BackendCheckThreshold      int
	AllowReenrollAfterWithdraw bool
	RefreshSchedule            string
	InflightTTL                time.Duration
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AuditConfig toggles the persisted enrollment audit trail.
type AuditConfig struct {
	Enabled bool
	Workers int
	Retries int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL:            strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Timeout:            parseDuration(v.GetString("BACKEND_TIMEOUT"), 15*time.Second),
		ResilientEndpoints: splitAndTrim(v.GetString("BACKEND_RESILIENT_ENDPOINTS")),
	}

	cfg.Session = SessionConfig{
		StaticToken:  v.GetString("SESSION_STATIC_TOKEN"),
		DefaultActor: v.GetString("SESSION_DEFAULT_ACTOR"),
		Required:     v.GetBool("SESSION_REQUIRED"),
	}

	cfg.Engine = EngineConfig{
		FallbackSampleSize:         v.GetInt("ENGINE_FALLBACK_SAMPLE_SIZE"),
		BackendCheckThreshold:      v.GetInt("ENGINE_BACKEND_CHECK_THRESHOLD"),
		AllowReenrollAfterWithdraw: v.GetBool("ENGINE_ALLOW_REENROLL_AFTER_WITHDRAW"),
		RefreshSchedule:            strings.TrimSpace(v.GetString("ENGINE_REFRESH_SCHEDULE")),
		InflightTTL:                parseDuration(v.GetString("ENGINE_INFLIGHT_TTL"), 30*time.Second),
	}

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
		Enabled:  v.GetBool("ENABLE_REDIS_GUARD"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("ENABLE_AUDIT"),
		Workers: v.GetInt("AUDIT_WORKERS"),
		Retries: v.GetInt("AUDIT_RETRIES"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8090)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:8080/api")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("BACKEND_RESILIENT_ENDPOINTS", "/inscripciones")

	v.SetDefault("SESSION_STATIC_TOKEN", "")
	v.SetDefault("SESSION_DEFAULT_ACTOR", "admin")
	v.SetDefault("SESSION_REQUIRED", false)

	v.SetDefault("ENGINE_FALLBACK_SAMPLE_SIZE", 3)
	v.SetDefault("ENGINE_BACKEND_CHECK_THRESHOLD", 10)
	v.SetDefault("ENGINE_ALLOW_REENROLL_AFTER_WITHDRAW", true)
	v.SetDefault("ENGINE_REFRESH_SCHEDULE", "")
	v.SetDefault("ENGINE_INFLIGHT_TTL", "30s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("ENABLE_REDIS_GUARD", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_RETRIES", 3)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
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
