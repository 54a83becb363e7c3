package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	"github.com/arg-foo/zaza-sub000/internal/handler/api"
	internalrepo "github.com/arg-foo/zaza-sub000/internal/repository"
	apimetrics "github.com/arg-foo/zaza-sub000/internal/service/metrics"
	"github.com/arg-foo/zaza-sub000/internal/service/ratelimit"
	"github.com/arg-foo/zaza-sub000/internal/services/analytics"
	"github.com/arg-foo/zaza-sub000/internal/services/backtest"
	"github.com/arg-foo/zaza-sub000/internal/services/ledger"
	"github.com/arg-foo/zaza-sub000/internal/usecase"
	"github.com/arg-foo/zaza-sub000/pkg/cache"
	pkgch "github.com/arg-foo/zaza-sub000/pkg/clickhouse"
	"github.com/arg-foo/zaza-sub000/pkg/config"
	xhttp "github.com/arg-foo/zaza-sub000/pkg/http"
	pkgkafka "github.com/arg-foo/zaza-sub000/pkg/kafka"
	applogger "github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/metrics"
	"github.com/arg-foo/zaza-sub000/pkg/queue"
	"github.com/arg-foo/zaza-sub000/pkg/server"
	"github.com/arg-foo/zaza-sub000/pkg/util"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder and registers the API collectors.
func ProvideMetrics() domrepo.Metrics {
	apimetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse when addresses are configured; otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	ch := cfg.ClickHouse
	if len(ch.Addrs) == 0 {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddrs(ch.Addrs...),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithCompression(ch.Compression),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if ch.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.DailyBarsSchema); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	l.Info("clickhouse connected",
		applogger.Strings("addrs", ch.Addrs),
		applogger.String("database", ch.Database),
	)
	return client, nil
}

// ProvideCache returns a layered memory+Redis cache when Redis is enabled, else an in-process cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 5*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))
	return cache.NewLayeredCache(rc, cfg.Redis.L1TTL), nil
}

// ProvidePriceProvider selects the market-data source and puts the cache in front of it.
func ProvidePriceProvider(cfg *config.Config, ch *pkgch.Client, c cache.Service, l *applogger.Logger) (domrepo.PriceProvider, error) {
	retry := util.DefaultRetryConfig()
	retry.MaxRetries = cfg.Provider.Retries

	var base domrepo.PriceProvider
	switch cfg.Provider.Type {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse provider selected without clickhouse.addrs")
		}
		s := internalrepo.NewCHPriceStore(ch)
		s.SetLogger(l)
		base = s
	case "http":
		opts := []xhttp.ClientOption{
			xhttp.WithBaseURL(cfg.Provider.BaseURL),
			xhttp.WithTimeout(cfg.Provider.Timeout),
		}
		if cfg.Provider.APIKey != "" {
			opts = append(opts, xhttp.WithHeader("X-API-Key", cfg.Provider.APIKey))
		}
		p := internalrepo.NewHTTPProvider(xhttp.NewClient(opts...), retry)
		p.SetLogger(l)
		base = p
	default:
		p := internalrepo.NewYahooProvider(retry)
		p.SetLogger(l)
		base = p
	}

	if cfg.Provider.CacheTTL <= 0 {
		return base, nil
	}
	cp := internalrepo.NewCachedProvider(base, c, cfg.Provider.CacheTTL)
	cp.SetLogger(l)
	return cp, nil
}

// ProvideKafkaProducer creates the event producer, or nil when Kafka is disabled. With
// logging.collect_errors set, aggregated error logs are shipped through it as well.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, 10*time.Second),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Logging.CollectErrors {
		l.AddCollector(&applogger.CollectionConfig{
			Service:   "quant",
			Topic:     cfg.Logging.CollectTopic,
			Publisher: producer,
		})
	}
	l.Info("kafka producer ready", applogger.Strings("brokers", cfg.Kafka.Brokers))
	return producer, nil
}

// ProvideEventPublisher wraps the producer for ledger events. Nil producer means no publisher.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.TopicPrefix)
}

// ProvidePredictionStore opens the file-backed ledger store.
func ProvidePredictionStore(cfg *config.Config, l *applogger.Logger) (domrepo.PredictionStore, error) {
	store, err := internalrepo.NewPredictionFileStore(cfg.Ledger.Dir)
	if err != nil {
		return nil, fmt.Errorf("prediction store: %w", err)
	}
	store.SetLogger(l)
	return store, nil
}

func ProvideLedger(
	cfg *config.Config,
	store domrepo.PredictionStore,
	prices domrepo.PriceProvider,
	pub domrepo.EventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *ledger.Ledger {
	opts := []ledger.Option{
		ledger.WithLogger(l.With(applogger.String("component", "ledger"))),
		ledger.WithMetrics(m),
		ledger.WithArchiveAge(cfg.Ledger.ArchiveAge),
	}
	if pub != nil {
		opts = append(opts, ledger.WithPublisher(pub))
	}
	return ledger.New(store, prices, opts...)
}

// ProvideEngines builds the quant engines with shared logging and metrics.
func ProvideEngines(cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) usecase.Engines {
	el := l.With(applogger.String("component", "engine"))
	opts := []analytics.Option{analytics.WithLogger(el), analytics.WithMetrics(m)}
	bopts := []backtest.Option{backtest.WithLogger(el), backtest.WithMetrics(m)}
	return usecase.Engines{
		Distribution:  analytics.NewDistributionAnalyzer(opts...),
		MeanReversion: analytics.NewMeanReversionAnalyzer(opts...),
		Regime:        analytics.NewRegimeClassifier(opts...),
		Forecast:      analytics.NewForecaster(opts...),
		Volatility:    analytics.NewVolatilityForecaster(opts...),
		Simulator:     analytics.NewMonteCarloSimulator(opts...),
		Backtester:    backtest.NewBacktester(bopts...),
		Strategy:      backtest.NewStrategySimulator(bopts...),
		Risk:          analytics.NewRiskCalculator(cfg.Quant.RiskFreeRate, opts...),
	}
}

func ProvideQuantService(
	cfg *config.Config,
	prices domrepo.PriceProvider,
	eng usecase.Engines,
	led *ledger.Ledger,
	l *applogger.Logger,
) *usecase.QuantService {
	q := cfg.Quant
	return usecase.NewQuantService(prices, eng, led, usecase.Settings{
		FitTimeout:     q.FitTimeout,
		Confidence:     q.Confidence,
		Simulations:    q.Simulations,
		HorizonDays:    q.HorizonDays,
		HoldingPeriods: q.HoldingPeriods,
		Benchmark:      q.Benchmark,
		MaxConcurrency: q.MaxConcurrency,
	}, usecase.WithServiceLogger(l.With(applogger.String("component", "quant"))))
}

// ProvideRateLimiter limits the model-fitting routes. A non-positive rate disables it.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit.RPS <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

func ProvideQuantHandler(l *applogger.Logger, svc *usecase.QuantService, limiter *ratelimit.Limiter) *api.QuantHandler {
	return api.NewQuantHandler(l, svc, limiter)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.QuantHandler) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(cfg.Metrics.Enabled),
		xhttp.WithLogger(l),
	)
}

// ProvideQueue returns a Redis-backed job queue sharing the cache's connection pool
// when Redis is enabled; otherwise jobs run inline.
func ProvideQueue(cfg *config.Config, c cache.Service, l *applogger.Logger) queue.Queue {
	rc, ok := c.(interface{ Client() *redis.Client })
	if !ok {
		return queue.NewInlineQueue()
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":jobs"))
}

func ProvideLedgerScheduler(
	cfg *config.Config,
	q queue.Queue,
	svc *usecase.QuantService,
	c cache.Service,
	l *applogger.Logger,
) *usecase.LedgerScheduler {
	return usecase.NewLedgerScheduler(q, svc, c, usecase.SchedulerConfig{
		ScoreEvery:   cfg.Ledger.ScoreInterval,
		ArchiveEvery: cfg.Ledger.ArchiveEvery,
		LockTTL:      cfg.Ledger.LockTTL,
	}, l.With(applogger.String("component", "scheduler")))
}

// ProvideKafkaConsumer creates the submitted-predictions consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	kc := cfg.Kafka.Consumer
	if !cfg.Kafka.Enabled || !kc.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideSubmittedPredictionsHandler(
	cfg *config.Config,
	svc *usecase.QuantService,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.SubmittedPredictionsHandler {
	return usecase.NewSubmittedPredictionsHandler(cfg.Kafka.Consumer.Topic, svc, m, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	q queue.Queue,
	sched *usecase.LedgerScheduler,
	consumer *pkgkafka.Consumer,
	submitted *usecase.SubmittedPredictionsHandler,
	producer *pkgkafka.Producer,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, l, server.Components{
		HTTP:      srv,
		Queue:     q,
		Scheduler: sched,
		Consumer:  consumer,
		Submitted: submitted,
		Producer:  producer,
		Cache:     c,
		CH:        ch,
	})
}
