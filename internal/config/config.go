package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Broker names accepted by EVENTS_BROKER
const (
	BrokerRabbitMQ = "rabbitmq"
	BrokerNATS     = "nats"
)

// Config holds the process settings read from the environment
type Config struct {
	HTTPAddr string

	// DatabaseURL is optional for the API: without it auctions live in
	// memory only and nothing is relayed.
	DatabaseURL   string
	DBLockTimeout time.Duration
	AutoMigrate   bool

	EventsBroker   string
	EventsExchange string
	RabbitMQURL    string
	NATSURL        string
	RedisURL       string

	JWTPublicKeyPath string
	JWTIssuer        string

	AmountDecimals int32

	RelayBatchSize int
	RelayInterval  time.Duration
}

// LoadDotEnv loads .env.local, then .env. Existing variables win and missing
// files are ignored.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("AUCTION_DB_URL"),
		EventsBroker:     strings.ToLower(getEnv("EVENTS_BROKER", BrokerRabbitMQ)),
		EventsExchange:   getEnv("EVENTS_EXCHANGE", "auction.events"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		NATSURL:          os.Getenv("NATS_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTPublicKeyPath: os.Getenv("JWT_PUBLIC_KEY_PATH"),
		JWTIssuer:        getEnv("JWT_ISSUER", "escrow-auction"),
	}

	var err error
	if cfg.DBLockTimeout, err = getDuration("DB_LOCK_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.RelayInterval, err = getDuration("RELAY_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate, err = getBool("AUTO_MIGRATE", true); err != nil {
		return nil, err
	}

	decimals, err := getInt("AMOUNT_DECIMALS", 6)
	if err != nil {
		return nil, err
	}
	if decimals < 0 || decimals > 18 {
		return nil, fmt.Errorf("AMOUNT_DECIMALS must be between 0 and 18, got %d", decimals)
	}
	cfg.AmountDecimals = int32(decimals)

	if cfg.RelayBatchSize, err = getInt("RELAY_BATCH_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.RelayBatchSize <= 0 {
		return nil, fmt.Errorf("RELAY_BATCH_SIZE must be positive, got %d", cfg.RelayBatchSize)
	}

	switch cfg.EventsBroker {
	case BrokerRabbitMQ, BrokerNATS:
	default:
		return nil, fmt.Errorf("EVENTS_BROKER must be %q or %q, got %q", BrokerRabbitMQ, BrokerNATS, cfg.EventsBroker)
	}

	return cfg, nil
}

// BrokerURL returns the connection URL of the selected broker
func (c *Config) BrokerURL() string {
	if c.EventsBroker == BrokerNATS {
		return c.NATSURL
	}
	return c.RabbitMQURL
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
