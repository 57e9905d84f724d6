package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Client manages a database/sql pool for either sqlite or postgres.
type Client struct {
	db     *sql.DB
	driver string
}

// NewClient opens and pings the configured database.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Driver:          DriverSQLite,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", cfg.Driver, err)
	}

	return &Client{db: db, driver: cfg.Driver}, nil
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB { return c.db }

// Driver returns the driver name.
func (c *Client) Driver() string { return c.driver }

// Health performs health check.
func (c *Client) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

// Close closes connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Rebind converts '?' placeholders to the driver's native form.
func (c *Client) Rebind(q string) string { return Rebind(c.driver, q) }

// Rebind converts '?' placeholders to $n for postgres. Queries must not
// contain literal question marks.
func Rebind(driver, q string) string {
	if driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
