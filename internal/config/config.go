package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
	DriverLayered  = "layered"
	DriverPostgres = "postgres"
)

type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type Config struct {
	HTTPPort           string
	GRPCPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	CatalogDriver string
	SQLitePath    string
	MongoURI      string
	MongoDBName   string

	CartStore     string
	RedisAddr     string
	RedisPassword string
	CartTTL       time.Duration
	CartCacheTTL  time.Duration

	OrdersDriver string
	Postgres     Postgres

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret       string
	StripeSecretKey string
	Currency        string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		GRPCPort:      getEnv("GRPC_PORT", "50057"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CatalogDriver: strings.ToLower(getEnv("CATALOG_DRIVER", DriverMemory)),
		SQLitePath:    getEnv("SQLITE_PATH", "./catalog.db"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "gemstore"),
		CartStore:     strings.ToLower(getEnv("CART_STORE", DriverMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		OrdersDriver:  strings.ToLower(getEnv("ORDERS_DRIVER", DriverMemory)),
		Postgres: Postgres{
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "gemstore"),
		},
		KafkaBrokers:    splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "orders-outbox"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		Currency:        strings.ToLower(getEnv("CURRENCY", "usd")),
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CartTTL, err = getDuration("CART_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CartCacheTTL, err = getDuration("CART_CACHE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxRequestBodySize, err = getInt64("MAX_REQUEST_BODY_SIZE", 1<<20); err != nil {
		return nil, err
	}
	port, err := getInt64("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.Port = int(port)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CatalogDriver {
	case DriverMemory, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("invalid CATALOG_DRIVER %q", c.CatalogDriver)
	}
	switch c.CartStore {
	case DriverMemory, DriverRedis, DriverMongo, DriverLayered:
	default:
		return fmt.Errorf("invalid CART_STORE %q", c.CartStore)
	}
	switch c.OrdersDriver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("invalid ORDERS_DRIVER %q", c.OrdersDriver)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// NeedsMongo reports whether any component is backed by MongoDB.
func (c *Config) NeedsMongo() bool {
	return c.CatalogDriver == DriverMongo || c.CartStore == DriverMongo || c.CartStore == DriverLayered
}

// NeedsRedis reports whether the cart store uses Redis.
func (c *Config) NeedsRedis() bool {
	return c.CartStore == DriverRedis || c.CartStore == DriverLayered
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
