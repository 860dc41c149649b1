package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/handler/api"
	"NoisyMarket/internal/middleware"
	internalrepo "NoisyMarket/internal/repository"
	"NoisyMarket/internal/services/markov"
	"NoisyMarket/internal/usecase"
	"NoisyMarket/pkg/cache"
	pkgch "NoisyMarket/pkg/clickhouse"
	"NoisyMarket/pkg/config"
	xhttp "NoisyMarket/pkg/http"
	pkgkafka "NoisyMarket/pkg/kafka"
	applogger "NoisyMarket/pkg/logger"
	"NoisyMarket/pkg/metrics"
	"NoisyMarket/pkg/queue"
	"NoisyMarket/pkg/server"
)

// breakerOpenFor is how long the path backend circuit stays open before probing again.
const breakerOpenFor = 30 * time.Second

// Services is the dependency graph the one-shot CLI commands need.
type Services struct {
	Config       *config.Config
	Log          *applogger.Logger
	Runner       *usecase.SimulationRunner
	Calibrations *usecase.CalibrationUseCase
	Processor    *usecase.PathProcessor
}

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stderr"})
}

// ProvideRegistry creates the Prometheus registry every component registers into.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegisterer(reg)
}

// ProvideRedisClient dials Redis when it is enabled. The client is nil otherwise.
func ProvideRedisClient(cfg *config.Config, log *applogger.Logger) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	log.Info("redis connected", applogger.String("addr", cfg.Redis.Addr))
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache layers process memory over Redis, or uses memory alone without Redis.
func ProvideCache(cfg *config.Config, client *redis.Client) (cache.Service, func()) {
	if client == nil {
		mem := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxSize),
			cache.WithMemoryTTL(cfg.Cache.MemoryTTL),
			cache.WithMemoryCleanup(cfg.Cache.CleanupTick),
		)
		return mem, func() { _ = mem.Close() }
	}
	lc := cache.NewLayeredCache(cache.NewRedisCacheFromClient(client, cfg.Cache.KeyPrefix),
		cache.WithLayeredMemorySize(cfg.Cache.MaxSize),
		cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
	return lc, func() { _ = lc.Close() }
}

func ProvideCalibrationStore(c cache.Service, cfg *config.Config) repository.CalibrationStore {
	return internalrepo.NewCacheCalibrationStore(c, cfg.Cache.TTL)
}

func ProvideJobStore(c cache.Service, cfg *config.Config) repository.JobStore {
	return internalrepo.NewCacheJobStore(c, cfg.Cache.JobTTL)
}

// ProvideKafkaProducer creates a Kafka producer when paths go to Kafka. It is nil otherwise.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts, cfg.Kafka.Compression),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithKeyAffinity(true),
		pkgkafka.WithProducerMetrics(pkgkafka.NewProducerMetrics(reg)),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePathPublisher publishes path records on the paths topic.
func ProvidePathPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.PathPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideCalibrationPublisher shares fitted calibrations on the calibration topic.
func ProvideCalibrationPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.CalibrationPublisher {
	if producer == nil || cfg.Kafka.CalibrationTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaCalibrationPublisher(producer, cfg.Kafka.CalibrationTopic)
}

// ProvideClickHouseClient connects to ClickHouse when paths go there. It is nil otherwise.
func ProvideClickHouseClient(cfg *config.Config, log *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Backend.Type != usecase.BackendClickHouse {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithEndpoint(cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	log.Info("clickhouse connected", applogger.String("database", cfg.ClickHouse.Database))
	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close", applogger.Error(err))
		}
	}, nil
}

// ProvidePathStorage creates the paths table and returns the storage on top of it.
func ProvidePathStorage(client *pkgch.Client, log *applogger.Logger) (repository.PathStorage, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseStorage(client, log)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvidePathProcessor(
	pub repository.PathPublisher,
	store repository.PathStorage,
	m repository.Metrics,
	cfg *config.Config,
	log *applogger.Logger,
) (*usecase.PathProcessor, func()) {
	p := usecase.NewPathProcessor(pub, store, m, cfg.Backend.Type, cfg.Backend.BatchSize, breakerOpenFor, log)
	return p, p.Close
}

// ProvidePathPipeline puts the retry buffer in front of the processor. The cleanup stops the
// retry loop and flushes what is left while the processor is still open.
func ProvidePathPipeline(
	proc *usecase.PathProcessor,
	m repository.Metrics,
	cfg *config.Config,
	log *applogger.Logger,
) (*middleware.PathPipeline, func()) {
	p := middleware.NewPathPipeline(proc, m,
		middleware.WithBufferSize(cfg.Backend.BufferSize),
		middleware.WithRetryBackoff(cfg.Backend.RetryMin, cfg.Backend.RetryMax),
		middleware.WithLogger(log))
	p.Start()
	return p, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := p.Stop(ctx); err != nil {
			log.Warn("path pipeline stop", applogger.Error(err))
		}
	}
}

// ProvideRunnerConfig maps the simulation section onto runner defaults.
func ProvideRunnerConfig(cfg *config.Config) (usecase.RunnerConfig, error) {
	dir, err := markov.ParseDirection(cfg.Simulation.Direction)
	if err != nil {
		return usecase.RunnerConfig{}, err
	}
	kind, err := markov.ParseKind(cfg.Simulation.Kind)
	if err != nil {
		return usecase.RunnerConfig{}, err
	}
	return usecase.RunnerConfig{
		Steps:     cfg.Simulation.Steps,
		Workers:   cfg.Simulation.Workers,
		MaxDraws:  cfg.Simulation.MaxDraws,
		Seed:      cfg.Simulation.Seed,
		Direction: dir,
		Kind:      kind,
	}, nil
}

func ProvideSimulationRunner(
	rc usecase.RunnerConfig,
	cals repository.CalibrationStore,
	sink *middleware.PathPipeline,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.SimulationRunner {
	return usecase.NewSimulationRunner(rc, cals, sink, m, log)
}

func ProvideCalibrationUseCase(
	cals repository.CalibrationStore,
	pub repository.CalibrationPublisher,
	m repository.Metrics,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.CalibrationUseCase {
	return usecase.NewCalibrationUseCase(cals, pub, m, log, cfg.Data.Lags, cfg.Simulation.Workers)
}

// ProvideQueue creates the Monte Carlo job queue on Redis. It is nil without Redis.
func ProvideQueue(cfg *config.Config, client *redis.Client, log *applogger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	return queue.NewRedisQueue(log, queue.QueueConfig{
		Workers:     cfg.Queue.Workers,
		RetryLimit:  cfg.Queue.MaxRetries,
		RetryDelay:  cfg.Queue.RetryDelay,
		PollTimeout: cfg.Queue.PollTimeout,
	}, client, queue.WithKeyPrefix(cfg.Cache.KeyPrefix+":queue:"+cfg.Queue.Name))
}

func ProvideMonteCarloJob(runner *usecase.SimulationRunner, jobs repository.JobStore, log *applogger.Logger) *usecase.MonteCarloJob {
	return usecase.NewMonteCarloJob(runner, jobs, log)
}

func ProvideJobSubmitter(q *queue.RedisQueue, jobs repository.JobStore) *usecase.JobSubmitter {
	if q == nil {
		return nil
	}
	return usecase.NewJobSubmitter(q, jobs)
}

// ProvideKafkaConsumer creates the calibration consumer when it is enabled. It is nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithGroup(cfg.Kafka.Brokers, cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerMetrics(pkgkafka.NewConsumerMetrics(reg)),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.RequireSchema(internalrepo.CalibrationSchema),
		pkgkafka.LogErrors(log),
	))
	return consumer, nil
}

func ProvideKafkaCalibrationHandler(
	cfg *config.Config,
	cals repository.CalibrationStore,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.KafkaCalibrationHandler {
	return usecase.NewKafkaCalibrationHandler(cfg.Kafka.CalibrationTopic, cals, m, log)
}

func ProvideHTTPHandler(
	log *applogger.Logger,
	runner *usecase.SimulationRunner,
	proc *usecase.PathProcessor,
	cals *usecase.CalibrationUseCase,
	jobs *usecase.JobSubmitter,
) *api.SimulationsEchoHandler {
	return api.NewSimulationsEchoHandler(log, runner, proc, cals, jobs)
}

// ProvideHTTPServer builds the echo server with the configured middleware.
func ProvideHTTPServer(cfg *config.Config, h *api.SimulationsEchoHandler, reg *prometheus.Registry, log *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithAddr("", cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		xhttp.WithLogger(log),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	}
	if cfg.Server.RateLimit.Enabled {
		opts = append(opts, xhttp.WithRateLimit(cfg.Server.RateLimit.Rate, cfg.Server.RateLimit.Burst))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	job *usecase.MonteCarloJob,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCalibrationHandler,
) *server.App {
	app := server.New(cfg, log, srv)
	if q != nil {
		q.RegisterJob(job)
		app.AddComponent("montecarlo-queue", q)
	}
	if consumer != nil {
		consumer.RegisterHandler(kh)
		app.AddComponent("calibration-consumer", consumer)
	}
	return app
}

func ProvideServices(
	cfg *config.Config,
	log *applogger.Logger,
	runner *usecase.SimulationRunner,
	cals *usecase.CalibrationUseCase,
	proc *usecase.PathProcessor,
) *Services {
	return &Services{Config: cfg, Log: log, Runner: runner, Calibrations: cals, Processor: proc}
}
