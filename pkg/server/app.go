package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/usecase"
	"github.com/arg-foo/zaza-sub000/pkg/cache"
	pkgch "github.com/arg-foo/zaza-sub000/pkg/clickhouse"
	"github.com/arg-foo/zaza-sub000/pkg/config"
	xhttp "github.com/arg-foo/zaza-sub000/pkg/http"
	pkgkafka "github.com/arg-foo/zaza-sub000/pkg/kafka"
	applogger "github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/queue"
)

// Components is everything the App starts and stops. Optional parts are nil when disabled.
type Components struct {
	HTTP      *xhttp.Server
	Queue     queue.Queue
	Scheduler *usecase.LedgerScheduler
	Consumer  *pkgkafka.Consumer
	Submitted pkgkafka.MessageHandler
	Producer  *pkgkafka.Producer
	Cache     cache.Service
	CH        *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components
}

func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, log: l, c: c}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("quant server starting",
		applogger.String("env", a.cfg.Environment),
		applogger.String("provider", a.cfg.Provider.Type),
		applogger.String("ledger_dir", a.cfg.Ledger.Dir),
	)
	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) start(ctx context.Context) error {
	if err := a.c.Queue.Start(); err != nil {
		return err
	}
	if a.c.Scheduler != nil {
		a.c.Scheduler.Start(ctx)
	}
	if a.c.Consumer != nil && a.c.Submitted != nil {
		a.c.Consumer.RegisterHandler(a.c.Submitted)
		if err := a.c.Consumer.Start(ctx); err != nil {
			return err
		}
	}
	return a.c.HTTP.Start()
}

// shutdown stops intake first (HTTP, consumer, scheduler), then drains the queue
// and finally closes the infrastructure clients.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	var errs []error
	if err := a.c.HTTP.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.c.Scheduler != nil {
		a.c.Scheduler.Stop()
	}
	if err := a.c.Queue.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	// the collector publishes through the producer, so it goes first
	a.log.RemoveCollector()
	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.c.CH != nil {
		if err := a.c.CH.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("shutdown finished with errors", applogger.Error(err))
		return
	}
	a.log.Info("shutdown complete")
}
