//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"NoisyMarket/pkg/config"
	"NoisyMarket/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideRedisClient,
	ProvideCache,
	ProvideCalibrationStore,
	ProvideJobStore,
	ProvideKafkaProducer,
	ProvidePathPublisher,
	ProvideCalibrationPublisher,
	ProvideClickHouseClient,
	ProvidePathStorage,
)

var usecaseSet = wire.NewSet(
	ProvidePathProcessor,
	ProvidePathPipeline,
	ProvideRunnerConfig,
	ProvideSimulationRunner,
	ProvideCalibrationUseCase,
)

// InitializeApp wires up all dependencies and returns the long-running application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		usecaseSet,

		ProvideQueue,
		ProvideMonteCarloJob,
		ProvideJobSubmitter,
		ProvideKafkaConsumer,
		ProvideKafkaCalibrationHandler,

		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeServices wires the dependencies of the one-shot CLI commands.
func InitializeServices(cfg *config.Config) (*Services, func(), error) {
	wire.Build(
		infraSet,
		usecaseSet,
		ProvideServices,
	)
	return nil, nil, nil
}
