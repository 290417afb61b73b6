package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Sweeper  SweeperConfig
	Audit    AuditConfig
}

// DatabaseConfig holds ledger storage settings
type DatabaseConfig struct {
	Backend          string // "sqlite" or "postgres"
	Path             string // sqlite file path
	Dsn              string // postgres connection string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	SeedDemoAccounts bool
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// SweeperConfig holds expiry sweeper settings
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// AuditConfig holds reconciliation settings
type AuditConfig struct {
	// Epsilon is the tolerated drift before an account is flagged.
	// Decimal arithmetic is exact, so this is normally zero; it exists
	// for ledgers imported from systems that stored floats.
	Epsilon string
}
