package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Settlement SettlementConfig
	Events     EventsConfig
	Formance   FormanceConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver           string // sqlite3 or postgres
	Path             string // sqlite file, or DSN for postgres
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	CreateDummyUsers bool
}

// SettlementConfig holds the money policy applied on resolution
type SettlementConfig struct {
	FeeRate      decimal.Decimal
	MoneyScale   int32
	FeeAccountId string // empty means the fee is discarded
}

// EventsConfig holds post-commit publication settings
type EventsConfig struct {
	KafkaBrokers       string
	KafkaTopic         string
	RedisAddr          string
	RedisChannelPrefix string
}

// FormanceConfig holds the optional Formance mirror settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether enough settings are present to connect
func (c FormanceConfig) Enabled() bool {
	return c.StackURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// ServerConfig holds daemon settings
type ServerConfig struct {
	HTTPPort      string
	MetricsPort   string
	AuditInterval time.Duration
	SeedFile      string
}
