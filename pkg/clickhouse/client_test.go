package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestClientOptions(t *testing.T) {
	opt := defaultOptions()
	for _, apply := range []ClientOption{
		WithAddrs("ch1:9000", "ch2:9000"),
		WithDatabase("quant"),
		WithCredentials("reader", "secret"),
		WithHTTP(true),
		WithCompression(true),
		WithTimeouts(0, time.Minute),
		WithMaxExecutionTime(90 * time.Second),
	} {
		apply(opt)
	}

	if len(opt.Addr) != 2 || opt.Auth.Database != "quant" || opt.Auth.Username != "reader" {
		t.Fatalf("unexpected options %+v", opt)
	}
	if opt.Protocol != clickhouse.HTTP {
		t.Fatalf("expected HTTP protocol")
	}
	if opt.Compression == nil || opt.Compression.Method != clickhouse.CompressionLZ4 {
		t.Fatalf("expected lz4 compression")
	}
	if opt.DialTimeout != 5*time.Second || opt.ReadTimeout != time.Minute {
		t.Fatalf("unexpected timeouts dial=%v read=%v", opt.DialTimeout, opt.ReadTimeout)
	}
	if opt.Settings["max_execution_time"] != 90 {
		t.Fatalf("unexpected settings %v", opt.Settings)
	}
}

func TestEmptyCredentialsKeepDefaultUser(t *testing.T) {
	opt := defaultOptions()
	WithCredentials("", "")(opt)
	WithDatabase("")(opt)
	if opt.Auth.Username != "default" || opt.Auth.Database != "default" {
		t.Fatalf("unexpected auth %+v", opt.Auth)
	}
}

func TestNewClientRequiresAddress(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without addresses")
	}
}
