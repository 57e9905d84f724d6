package sqldb

import "time"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds relational store configuration.
type ClientConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// WithDriver selects sqlite (modernc) or postgres (lib/pq).
func WithDriver(driver string) ClientOption {
	return func(c *ClientConfig) {
		c.Driver = driver
	}
}

// WithDSN sets the data source name.
func WithDSN(dsn string) ClientOption {
	return func(c *ClientConfig) {
		c.DSN = dsn
	}
}

// WithMaxConnections sets max open and idle connections.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

// WithConnMaxLifetime bounds how long a pooled connection is reused.
func WithConnMaxLifetime(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.ConnMaxLifetime = d
	}
}

// WithPingTimeout bounds the initial connectivity check.
func WithPingTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.PingTimeout = d
	}
}
