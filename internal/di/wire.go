//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/arg-foo/zaza-sub000/internal/usecase"
	"github.com/arg-foo/zaza-sub000/pkg/config"
	"github.com/arg-foo/zaza-sub000/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideKafkaProducer,
	ProvideClickHouseClient,
	ProvideCache,
	ProvideQueue,
)

var quantSet = wire.NewSet(
	ProvidePriceProvider,
	ProvideEventPublisher,
	ProvidePredictionStore,
	ProvideLedger,
	ProvideEngines,
	ProvideQuantService,
)

var transportSet = wire.NewSet(
	ProvideRateLimiter,
	ProvideQuantHandler,
	ProvideHTTPServer,
	ProvideLedgerScheduler,
	ProvideKafkaConsumer,
	ProvideSubmittedPredictionsHandler,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		infraSet,
		quantSet,
		transportSet,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeQuantService builds the service alone, without transports, for the CLI.
func InitializeQuantService(cfg *config.Config) (*usecase.QuantService, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideCache,
		quantSet,
	)
	return &usecase.QuantService{}, nil
}
