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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Lottery  LotteryConfig
	Catalog  CatalogConfig
	Rosters  RostersConfig
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

// LotteryConfig governs the assignment engine.
type LotteryConfig struct {
	// Strategy selects candidate ranking: "category_count" reproduces the
	// legacy flat-demand ordering, "weighted" ranks by the strongest stated
	// preference value first.
	Strategy string
	// Incremental allows re-runs that only assign currently unassigned
	// registrations instead of failing when lottery rows already exist.
	Incremental bool
	// AcceptedCoursesOnly restricts the pass to sections of accepted courses.
	AcceptedCoursesOnly bool
	// MaxDuration bounds a single run; on expiry the run aborts and rolls back.
	MaxDuration time.Duration
	// LockTTL caps how long the per-program advisory lock may be held.
	LockTTL time.Duration
}

// CatalogConfig tunes read caching for catalog endpoints.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// RostersConfig configures asynchronous roster export generation.
type RostersConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
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

	cfg.Lottery = LotteryConfig{
		Strategy:            v.GetString("LOTTERY_STRATEGY"),
		Incremental:         v.GetBool("LOTTERY_INCREMENTAL"),
		AcceptedCoursesOnly: v.GetBool("LOTTERY_ACCEPTED_COURSES_ONLY"),
		MaxDuration:         parseDuration(v.GetString("LOTTERY_MAX_DURATION"), 2*time.Minute),
		LockTTL:             parseDuration(v.GetString("LOTTERY_LOCK_TTL"), 5*time.Minute),
	}

	cfg.Catalog = CatalogConfig{
		CacheTTL: parseDuration(v.GetString("CATALOG_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Rosters = RostersConfig{
		Enabled:           v.GetBool("ENABLE_ROSTER_EXPORTS"),
		StorageDir:        v.GetString("ROSTER_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("ROSTER_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("ROSTER_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("ROSTER_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("ROSTER_WORKER_RETRIES"),
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
	v.SetDefault("DB_NAME", "program_lottery")
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

	v.SetDefault("LOTTERY_STRATEGY", "category_count")
	v.SetDefault("LOTTERY_INCREMENTAL", false)
	v.SetDefault("LOTTERY_ACCEPTED_COURSES_ONLY", false)
	v.SetDefault("LOTTERY_MAX_DURATION", "2m")
	v.SetDefault("LOTTERY_LOCK_TTL", "5m")

	v.SetDefault("CATALOG_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_ROSTER_EXPORTS", false)
	v.SetDefault("ROSTER_STORAGE_DIR", "./exports")
	v.SetDefault("ROSTER_SIGNED_URL_SECRET", "dev_roster_secret")
	v.SetDefault("ROSTER_SIGNED_URL_TTL", "24h")
	v.SetDefault("ROSTER_WORKER_CONCURRENCY", 1)
	v.SetDefault("ROSTER_WORKER_RETRIES", 3)
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
