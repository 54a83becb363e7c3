package clickhouse

import (
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClientOption adjusts the driver options before the pool is opened.
type ClientOption func(*clickhouse.Options)

func defaultOptions() *clickhouse.Options {
	return &clickhouse.Options{
		Auth:            clickhouse.Auth{Database: "default", Username: "default"},
		Protocol:        clickhouse.Native,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     30 * time.Second,
		Settings:        clickhouse.Settings{},
	}
}

func WithAddrs(addrs ...string) ClientOption {
	return func(o *clickhouse.Options) { o.Addr = addrs }
}

func WithDatabase(database string) ClientOption {
	return func(o *clickhouse.Options) {
		if database != "" {
			o.Auth.Database = database
		}
	}
}

func WithCredentials(user, password string) ClientOption {
	return func(o *clickhouse.Options) {
		if user != "" {
			o.Auth.Username = user
		}
		o.Auth.Password = password
	}
}

func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(o *clickhouse.Options) {
		o.MaxOpenConns = maxOpen
		o.MaxIdleConns = maxIdle
	}
}

// WithTimeouts overrides the dial and read timeouts; zero keeps the default.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(o *clickhouse.Options) {
		if dial > 0 {
			o.DialTimeout = dial
		}
		if read > 0 {
			o.ReadTimeout = read
		}
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(enabled bool) ClientOption {
	return func(o *clickhouse.Options) {
		if enabled {
			o.Protocol = clickhouse.HTTP
		}
	}
}

// WithCompression enables LZ4 block compression.
func WithCompression(enabled bool) ClientOption {
	return func(o *clickhouse.Options) {
		if enabled {
			o.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
		}
	}
}

// WithMaxExecutionTime sets the server-side max_execution_time in whole seconds.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(o *clickhouse.Options) {
		if d > 0 {
			o.Settings["max_execution_time"] = int(d.Seconds())
		}
	}
}
