package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Store     StoreConfig
	Cache     CacheConfig
	Notify    NotifyConfig
	Refresh   RefreshConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"` // 0 keeps SSE streams open
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"gta-grind-tracker"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	SeedCatalog bool   `envconfig:"APP_SEED_CATALOG" default:"true"`
}

// StoreConfig holds record store settings.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path string `envconfig:"STORE_PATH" default:"./data/grind.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"STORE_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_PORT" default:"5432"`
	Name     string `envconfig:"STORE_NAME" default:"grind"`
	User     string `envconfig:"STORE_USER" default:"postgres"`
	Password string `envconfig:"STORE_PASS" default:""`
	SSLMode  string `envconfig:"STORE_SSLMODE" default:"disable"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// UsesRedis reports whether a Redis client is needed.
func (c *CacheConfig) UsesRedis() bool {
	return c.Type == "redis"
}

// NotifyConfig holds notification scheduler and sink settings.
type NotifyConfig struct {
	Grace        time.Duration `envconfig:"NOTIFY_GRACE" default:"250ms"`
	ToastTTL     time.Duration `envconfig:"NOTIFY_TOAST_TTL" default:"5s"`
	Sound        bool          `envconfig:"NOTIFY_SOUND" default:"false"`
	RedisChannel string        `envconfig:"NOTIFY_REDIS_CHANNEL" default:""` // empty disables the Redis platform

	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:""` // comma separated, empty disables Kafka
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"gta.notifications"`

	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"grind"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"notification_logs"`
}

// Brokers splits KafkaBrokers into addresses.
func (n *NotifyConfig) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(n.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// RefreshConfig holds refresh loop settings.
type RefreshConfig struct {
	Interval time.Duration `envconfig:"REFRESH_INTERVAL" default:"5s"`
	Timeout  time.Duration `envconfig:"REFRESH_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled  bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"120"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.Store.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("failed to load config: unknown STORE_TYPE %q", cfg.Store.Type)
	}
	if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Enabled = false
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
