package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer wraps a kafka-go writer. Topics are chosen per message.
type Producer struct {
	writer *kafka.Writer
	comp   string
}

// ProducerOption configures the underlying writer.
type ProducerOption func(*producerSetup)

type producerSetup struct {
	brokers     []string
	compression string
	w           *kafka.Writer
}

func WithBrokers(brokers []string) ProducerOption {
	return func(s *producerSetup) { s.brokers = brokers }
}

// WithCompression accepts gzip, snappy, lz4 or zstd. Anything else means gzip.
func WithCompression(codec string) ProducerOption {
	return func(s *producerSetup) {
		if codec == "" {
			return
		}
		s.compression = codec
		s.w.Compression = parseCompression(codec)
	}
}

func WithMaxAttempts(n int) ProducerOption {
	return func(s *producerSetup) {
		if n > 0 {
			s.w.MaxAttempts = n
		}
	}
}

// WithBatching sets how many messages are buffered and how long the writer lingers.
func WithBatching(size int, linger time.Duration) ProducerOption {
	return func(s *producerSetup) {
		if size > 0 {
			s.w.BatchSize = size
		}
		if linger > 0 {
			s.w.BatchTimeout = linger
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(s *producerSetup) {
		if write > 0 {
			s.w.WriteTimeout = write
		}
		if read > 0 {
			s.w.ReadTimeout = read
		}
	}
}

// WithAsync makes Publish return before the broker acknowledges.
func WithAsync(async bool) ProducerOption {
	return func(s *producerSetup) { s.w.Async = async }
}

// NewProducer creates a writer that hashes keys to partitions and waits for all replicas.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	s := &producerSetup{
		compression: "gzip",
		w: &kafka.Writer{
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Gzip,
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
			BatchSize:    100,
			BatchBytes:   1 << 20,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	s.w.Addr = kafka.TCP(s.brokers...)

	producerMetricsOnce.Do(initProducerMetrics)
	return &Producer{writer: s.w, comp: s.compression}, nil
}

// Publish sends one message. Values other than []byte and string are JSON-encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	v, err := encodeValue(value)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: v,
		Time:  start,
	})
	observeProducer(topic, p.comp, len(v), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

// PublishMessage publishes an unkeyed payload, which lets the producer back the log collector.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// Close flushes pending writes and closes the producer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		v, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return v, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	producerMsgsTotal   *prometheus.CounterVec
	producerBytesTotal  *prometheus.CounterVec
	producerLatencyHist *prometheus.HistogramVec
	producerMetricsOnce sync.Once
)

func initProducerMetrics() {
	producerMsgsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quant_kafka_producer_messages_total",
			Help: "Total messages published to Kafka",
		},
		[]string{"topic", "result"},
	)
	producerBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quant_kafka_producer_bytes_total",
			Help: "Total payload bytes published",
		},
		[]string{"topic", "compression"},
	)
	producerLatencyHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quant_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
}

func observeProducer(topic, comp string, size int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgsTotal.WithLabelValues(topic, result).Inc()
	producerBytesTotal.WithLabelValues(topic, comp).Add(float64(size))
	producerLatencyHist.WithLabelValues(topic).Observe(dur.Seconds())
}
