package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/trogers1052/paper-trader/internal/ledger"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Quote          QuoteConfig
	Ledger         LedgerConfig
	Log            LogConfig
	MigrationsPath string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds session store configuration
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SessionTTL time.Duration
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

// QuoteConfig holds quote provider configuration
type QuoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LedgerConfig holds account defaults
type LedgerConfig struct {
	StartingCash decimal.Decimal
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	startingCash, err := decimal.NewFromString(v.GetString("STARTING_CASH"))
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_CASH: %w", err)
	}
	if startingCash.IsNegative() {
		return nil, fmt.Errorf("STARTING_CASH must not be negative")
	}
	if startingCash.GreaterThan(ledger.MaxCash) {
		return nil, fmt.Errorf("STARTING_CASH must not exceed %s", ledger.MaxCash.StringFixed(2))
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("SERVER_PORT"),
			Host: v.GetString("SERVER_HOST"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:       v.GetString("REDIS_ADDR"),
			Password:   v.GetString("REDIS_PASSWORD"),
			DB:         v.GetInt("REDIS_DB"),
			SessionTTL: v.GetDuration("SESSION_TTL"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("KAFKA_ENABLED"),
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
			GroupID: v.GetString("KAFKA_GROUP_ID"),
		},
		Quote: QuoteConfig{
			BaseURL: v.GetString("QUOTE_BASE_URL"),
			APIKey:  v.GetString("QUOTE_API_KEY"),
			Timeout: v.GetDuration("QUOTE_TIMEOUT"),
		},
		Ledger: LedgerConfig{
			StartingCash: startingCash.Round(2),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),
	}

	if cfg.Quote.APIKey == "" {
		return nil, fmt.Errorf("QUOTE_API_KEY not set")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must be set when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "papertrader")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", "24h")

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "trade-events")
	v.SetDefault("KAFKA_GROUP_ID", "paper-trader-reconciler")

	v.SetDefault("QUOTE_BASE_URL", "https://cloud.iexapis.com/stable")
	v.SetDefault("QUOTE_API_KEY", "")
	v.SetDefault("QUOTE_TIMEOUT", "8s")

	v.SetDefault("STARTING_CASH", "10000.00")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("MIGRATIONS_PATH", "db/migrations")
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
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
