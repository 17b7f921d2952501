package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	LocksMemory = "memory"
	LocksRedis  = "redis"

	GatewayNoop      = "noop"
	GatewaySimulated = "simulated"
)

type Config struct {
	LogLevel           string
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	StoreDriver   string
	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	SQLitePath    string
	MigrationsDir string
	Seed          bool

	LockBackend   string
	RedisAddr     string
	RedisPassword string

	KafkaBrokers        []string
	OrderCreatedTopic   string
	OrderUpdatedTopic   string
	OrderCancelledTopic string
	PaymentResultsTopic string

	PaymentGateway string

	CartLockWait   time.Duration
	CartLockLease  time.Duration
	OrderLockWait  time.Duration
	OrderLockLease time.Duration

	ShippingBaseFee      decimal.Decimal
	ShippingIncrementFee decimal.Decimal
	ItemsPerIncrement    int
	TaxRate              decimal.Decimal
}

// Load reads configuration from the environment, after applying an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg := &Config{
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		MaxRequestBodySize: 1 << 20,

		StoreDriver:   getEnv("STORE_DRIVER", StoreMemory),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "shop"),
		SQLitePath:    getEnv("SQLITE_PATH", "shop.db"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", ""),

		LockBackend:   getEnv("LOCK_BACKEND", LocksMemory),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers:        splitList(getEnv("KAFKA_BROKERS", "")),
		OrderCreatedTopic:   getEnv("ORDER_CREATED_TOPIC", "order-created"),
		OrderUpdatedTopic:   getEnv("ORDER_UPDATED_TOPIC", "order-updated"),
		OrderCancelledTopic: getEnv("ORDER_CANCELLED_TOPIC", "order-cancelled"),
		PaymentResultsTopic: getEnv("PAYMENT_RESULTS_TOPIC", "payment-results"),

		PaymentGateway: getEnv("PAYMENT_GATEWAY", GatewayNoop),
	}

	var err error
	if cfg.DBPort, err = getInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.Seed, err = getBool("SEED_DATA", cfg.StoreDriver == StoreMemory); err != nil {
		return nil, err
	}
	if cfg.ItemsPerIncrement, err = getInt("SHIPPING_ITEMS_PER_INCREMENT", 5); err != nil {
		return nil, err
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"REQUEST_TIMEOUT", 30 * time.Second, &cfg.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
		{"CART_LOCK_WAIT", 10 * time.Second, &cfg.CartLockWait},
		{"CART_LOCK_LEASE", 30 * time.Second, &cfg.CartLockLease},
		{"ORDER_LOCK_WAIT", 15 * time.Second, &cfg.OrderLockWait},
		{"ORDER_LOCK_LEASE", 30 * time.Second, &cfg.OrderLockLease},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	money := []struct {
		key  string
		def  string
		dest *decimal.Decimal
	}{
		{"SHIPPING_BASE_FEE", "10", &cfg.ShippingBaseFee},
		{"SHIPPING_INCREMENT_FEE", "2", &cfg.ShippingIncrementFee},
		{"TAX_RATE", "0.10", &cfg.TaxRate},
	}
	for _, m := range money {
		if *m.dest, err = getDecimal(m.key, m.def); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.LockBackend {
	case LocksMemory, LocksRedis:
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	switch c.PaymentGateway {
	case GatewayNoop, GatewaySimulated:
	default:
		return fmt.Errorf("unknown PAYMENT_GATEWAY %q", c.PaymentGateway)
	}
	if c.ItemsPerIncrement <= 0 {
		return fmt.Errorf("SHIPPING_ITEMS_PER_INCREMENT must be positive, got %d", c.ItemsPerIncrement)
	}
	if c.TaxRate.IsNegative() {
		return fmt.Errorf("TAX_RATE must not be negative, got %s", c.TaxRate)
	}
	return nil
}

// Migrations returns the migrations directory for the configured driver.
func (c *Config) Migrations() string {
	if c.MigrationsDir != "" {
		return c.MigrationsDir
	}
	return "migrations/" + c.StoreDriver
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getDecimal(key, defaultValue string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
