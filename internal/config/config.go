// internal/config/config.go
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
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Analysis    AnalysisConfig
	Places      PlacesConfig
	Cache       CacheConfig
	Dedup       DedupConfig
	Retry       RetryConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port              string
	Host              string
	ReadTimeout       int
	WriteTimeout      int
	IdleTimeout       int
	AllowedOrigins    []string
	RequestsPerSecond float64
	Burst             int
}

type DatabaseConfig struct {
	Driver       string // "postgres" or "sqlite"
	SQLitePath   string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// ProviderConfig is one hosted analysis provider. An empty APIKey disables it.
type ProviderConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
}

type AnalysisConfig struct {
	// Order lists provider names in the order the chain tries them.
	Order     []string
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Timeout   int // in seconds
}

type PlacesConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           int // in seconds
	RequestsPerSecond float64
}

type CacheConfig struct {
	SnapshotTTLHours int
	Backend          string // "database" or "redis"
}

type DedupConfig struct {
	DefaultMaxGroups int
	PageSize         int
	Parallelism      int
	GeoMatchMeters   float64
}

type RetryConfig struct {
	MaxRetries     int
	InitialDelayMs int
	MaxDelayMs     int
	Multiplier     float64
	JitterFactor   float64
}

type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:              getEnv("SERVER_PORT", "8080"),
			Host:              getEnv("SERVER_HOST", ""),
			ReadTimeout:       getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:      getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:       getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "venuetrust.db"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "venuetrust"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Analysis: AnalysisConfig{
			Order: getEnvAsList("ANALYSIS_PROVIDERS", []string{"openai", "anthropic"}),
			OpenAI: ProviderConfig{
				APIKey:            getEnv("OPENAI_API_KEY", ""),
				BaseURL:           getEnv("OPENAI_BASE_URL", ""),
				Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				RequestsPerSecond: getEnvAsFloat("OPENAI_RPS", 2),
			},
			Anthropic: ProviderConfig{
				APIKey:            getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL:           getEnv("ANTHROPIC_BASE_URL", ""),
				Model:             getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
				RequestsPerSecond: getEnvAsFloat("ANTHROPIC_RPS", 2),
			},
			Timeout: getEnvAsInt("ANALYSIS_TIMEOUT", 20),
		},
		Places: PlacesConfig{
			BaseURL:           getEnv("PLACES_BASE_URL", ""),
			APIKey:            getEnv("PLACES_API_KEY", ""),
			Timeout:           getEnvAsInt("PLACES_TIMEOUT", 10),
			RequestsPerSecond: getEnvAsFloat("PLACES_RPS", 5),
		},
		Cache: CacheConfig{
			SnapshotTTLHours: getEnvAsInt("SNAPSHOT_TTL_HOURS", 168), // 7 days
			Backend:          getEnv("SNAPSHOT_BACKEND", "database"),
		},
		Dedup: DedupConfig{
			DefaultMaxGroups: getEnvAsInt("DEDUP_MAX_GROUPS", 100),
			PageSize:         getEnvAsInt("DEDUP_PAGE_SIZE", 500),
			Parallelism:      getEnvAsInt("DEDUP_PARALLELISM", 4),
			GeoMatchMeters:   getEnvAsFloat("DEDUP_GEO_MATCH_METERS", 80),
		},
		Retry: RetryConfig{
			MaxRetries:     getEnvAsInt("RETRY_MAX_RETRIES", 3),
			InitialDelayMs: getEnvAsInt("RETRY_INITIAL_DELAY_MS", 200),
			MaxDelayMs:     getEnvAsInt("RETRY_MAX_DELAY_MS", 5000),
			Multiplier:     getEnvAsFloat("RETRY_MULTIPLIER", 2.0),
			JitterFactor:   getEnvAsFloat("RETRY_JITTER", 0.1),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Cache.SnapshotTTLHours <= 0 {
		return fmt.Errorf("snapshot TTL must be positive, got %d hours", c.Cache.SnapshotTTLHours)
	}

	if c.Cache.Backend != "database" && c.Cache.Backend != "redis" {
		return fmt.Errorf("unknown snapshot backend %q", c.Cache.Backend)
	}

	if c.Cache.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis snapshot backend requires REDIS_ENABLED=true")
	}

	if c.Dedup.PageSize <= 0 || c.Dedup.Parallelism <= 0 {
		return fmt.Errorf("dedup page size and parallelism must be positive")
	}

	for _, name := range c.Analysis.Order {
		if name != "openai" && name != "anthropic" {
			return fmt.Errorf("unknown analysis provider %q", name)
		}
	}

	return nil
}

// SnapshotTTL returns the snapshot lifetime.
func (c *CacheConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLHours) * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
