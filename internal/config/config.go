package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	FeedPostgres = "postgres"
	FeedRabbitMQ = "rabbitmq"
	FeedNone     = "none"
)

// Config holds all configuration for the POS backend
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	POS      POSConfig      `yaml:"pos"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// RedisConfig enables the shared lease when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// POSConfig identifies the terminal and selects its collaborators
type POSConfig struct {
	RestaurantID string        `yaml:"restaurant_id"`
	BranchID     string        `yaml:"branch_id"`
	TerminalID   string        `yaml:"terminal_id"`
	Store        string        `yaml:"store"`
	Feed         string        `yaml:"feed"`
	SeedFile     string        `yaml:"seed_file"`
	Migrations   string        `yaml:"migrations"`
	SettleWindow time.Duration `yaml:"settle_window"`
	LeaseTTL     time.Duration `yaml:"lease_ttl"`
}

// Load reads configuration from a YAML file, then applies an optional .env
// file and POS_* environment overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	config := defaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432},
		RabbitMQ: RabbitMQConfig{Port: 5672},
		POS: POSConfig{
			Store:        StorePostgres,
			Feed:         FeedPostgres,
			Migrations:   "migrations",
			SettleWindow: 5 * time.Second,
			LeaseTTL:     30 * time.Second,
		},
	}
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Host, "POS_DB_HOST")
	setString(&c.Database.User, "POS_DB_USER")
	setString(&c.Database.Password, "POS_DB_PASSWORD")
	setString(&c.Database.Database, "POS_DB_NAME")
	setString(&c.RabbitMQ.Host, "POS_RABBITMQ_HOST")
	setString(&c.RabbitMQ.User, "POS_RABBITMQ_USER")
	setString(&c.RabbitMQ.Password, "POS_RABBITMQ_PASSWORD")
	setString(&c.Redis.Addr, "POS_REDIS_ADDR")
	setString(&c.Redis.Password, "POS_REDIS_PASSWORD")
	setString(&c.POS.RestaurantID, "POS_RESTAURANT_ID")
	setString(&c.POS.BranchID, "POS_BRANCH_ID")
	setString(&c.POS.TerminalID, "POS_TERMINAL_ID")
	setString(&c.POS.Store, "POS_STORE")
	setString(&c.POS.Feed, "POS_FEED")
	setString(&c.POS.SeedFile, "POS_SEED_FILE")

	if err := setInt(&c.Database.Port, "POS_DB_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.RabbitMQ.Port, "POS_RABBITMQ_PORT"); err != nil {
		return err
	}
	return setInt(&c.Redis.DB, "POS_REDIS_DB")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks the values the services depend on
func (c *Config) Validate() error {
	if c.POS.RestaurantID == "" {
		return fmt.Errorf("pos.restaurant_id is required")
	}
	switch c.POS.Store {
	case StorePostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("database.host and database.database are required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown pos.store %q", c.POS.Store)
	}
	switch c.POS.Feed {
	case FeedPostgres:
		if c.POS.Store != StorePostgres {
			return fmt.Errorf("pos.feed postgres requires the postgres store")
		}
	case FeedRabbitMQ:
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq.host is required for the rabbitmq feed")
		}
	case FeedNone:
	default:
		return fmt.Errorf("unknown pos.feed %q", c.POS.Feed)
	}
	if c.POS.SettleWindow <= 0 {
		return fmt.Errorf("pos.settle_window must be positive")
	}
	if c.POS.LeaseTTL <= 0 {
		return fmt.Errorf("pos.lease_ttl must be positive")
	}
	return nil
}

// MessagingEnabled reports whether a RabbitMQ broker is configured
func (c *Config) MessagingEnabled() bool {
	return c.RabbitMQ.Host != ""
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
