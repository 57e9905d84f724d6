package di

import (
	"context"
	"fmt"
	"time"

	"MarketMood/internal/domain/models"
	"MarketMood/internal/domain/repository"
	"MarketMood/internal/handler/api"
	"MarketMood/internal/handler/ws"
	internalrepo "MarketMood/internal/repository"
	icache "MarketMood/internal/service/cache"
	"MarketMood/internal/service/marketdata"
	"MarketMood/internal/service/ratelimit"
	"MarketMood/internal/service/scheduler"
	"MarketMood/internal/services/analytics"
	"MarketMood/internal/services/correlation"
	"MarketMood/internal/services/features"
	"MarketMood/internal/services/mood"
	"MarketMood/internal/usecase"
	pkgch "MarketMood/pkg/clickhouse"
	"MarketMood/pkg/config"
	xhttp "MarketMood/pkg/http"
	pkgkafka "MarketMood/pkg/kafka"
	applogger "MarketMood/pkg/logger"
	"MarketMood/pkg/metrics"
	"MarketMood/pkg/server"
	"MarketMood/pkg/sqldb"
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStateStore opens the SQL store and creates its tables.
func ProvideStateStore(cfg *config.Config, l *applogger.Logger) (*internalrepo.SQLStateStore, error) {
	client, err := sqldb.NewClient(
		sqldb.WithDriver(cfg.Store.Driver),
		sqldb.WithDSN(cfg.Store.DSN),
		sqldb.WithMaxConnections(cfg.Store.MaxOpenConns, cfg.Store.MaxIdleConns),
		sqldb.WithConnMaxLifetime(cfg.Store.ConnMaxLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	store := internalrepo.NewSQLStateStore(client)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("state store schema: %w", err)
	}
	l.Info("state store ready", applogger.String("driver", cfg.Store.Driver))
	return store, nil
}

// ProvidePersistence exposes the store as the pipeline's persistence gateway.
func ProvidePersistence(store *internalrepo.SQLStateStore) repository.PersistenceGateway {
	return store
}

// ProvideClickHouseClient connects to ClickHouse when it is the configured
// source. Otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Source.Type != string(models.SourceClickHouse) {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CHSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRegistry returns the built-in market registry.
func ProvideRegistry() *marketdata.Registry {
	return marketdata.NewRegistry()
}

// ProvideSnapshotSource selects the primary source and, when configured,
// wraps it with the synthetic fallback.
func ProvideSnapshotSource(cfg *config.Config, reg *marketdata.Registry, ch *pkgch.Client, l *applogger.Logger) (repository.SnapshotSource, error) {
	synthetic := marketdata.NewSyntheticSource(reg, cfg.Source.Synthetic.Seed, time.Now)

	var primary repository.SnapshotSource
	switch cfg.Source.Type {
	case string(models.SourceYahoo):
		primary = marketdata.NewYahooSource(cfg.Source.Yahoo.BaseURL, cfg.Source.Yahoo.UserAgent, cfg.Source.FetchTimeout, reg)
	case string(models.SourceClickHouse):
		if ch == nil {
			return nil, fmt.Errorf("clickhouse source selected without a client")
		}
		src := internalrepo.NewCHSnapshotSource(ch, cfg.ClickHouse.Table)
		src.SetLogger(l)
		primary = src
	case string(models.SourceSynthetic):
		l.Warn("using synthetic market data")
		return synthetic, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}

	if cfg.Source.Fallback == string(models.SourceSynthetic) {
		return marketdata.NewFallbackSource(primary, synthetic, l), nil
	}
	return primary, nil
}

// ProvideFetcher bounds concurrency and per-market time of the source.
func ProvideFetcher(cfg *config.Config, src repository.SnapshotSource, l *applogger.Logger) *marketdata.Fetcher {
	return marketdata.NewFetcher(src,
		marketdata.WithConcurrency(cfg.Source.Concurrency),
		marketdata.WithTimeout(cfg.Source.FetchTimeout),
		marketdata.WithLogger(l),
	)
}

// ProvideAnalyticsEngine builds the per-batch analytics engine.
func ProvideAnalyticsEngine(cfg *config.Config) *analytics.Engine {
	w := cfg.Analytics.Weights
	return analytics.NewEngine(
		features.NewCalculator(),
		mood.NewEngine(),
		correlation.NewCalculator(correlation.WithThreshold(cfg.Analytics.CorrelationThreshold)),
		analytics.WithWeights(models.Weights{Return: w.Return, Volatility: w.Volatility, Volume: w.Volume}),
	)
}

// ProvideCache returns Redis when enabled, otherwise an in-process cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) icache.BytesCache {
	if !cfg.Redis.Enabled {
		return icache.NewTTLCache()
	}
	rc := icache.NewRedisCache(icache.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Warn("redis unreachable, snapshot cache will miss until it recovers", applogger.Error(err))
	}
	return rc
}

// ProvideSnapshotService serves the latest snapshot through the cache.
func ProvideSnapshotService(cfg *config.Config, store *internalrepo.SQLStateStore, cache icache.BytesCache, l *applogger.Logger) *usecase.SnapshotService {
	return usecase.NewSnapshotService(store, cache, cfg.Redis.SnapshotTTL, l)
}

// ProvideKafkaPublisher creates the run event publisher when Kafka is
// enabled. Otherwise it returns nil.
func ProvideKafkaPublisher(cfg *config.Config) (*internalrepo.KafkaRunPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.Topics.Runs, cfg.Kafka.Topics.Moods), nil
}

// ProvideHub creates the websocket broadcaster.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideRetentionService deletes old states and drops the snapshot cache.
func ProvideRetentionService(cfg *config.Config, store repository.PersistenceGateway, snap *usecase.SnapshotService, l *applogger.Logger) *usecase.RetentionService {
	return usecase.NewRetentionService(store, cfg.Scheduler.DaysToKeep, l, snap)
}

// ProvidePipelineRunner wires the pipeline with every run notifier.
func ProvidePipelineRunner(
	cfg *config.Config,
	fetcher *marketdata.Fetcher,
	engine *analytics.Engine,
	store repository.PersistenceGateway,
	m repository.Metrics,
	snap *usecase.SnapshotService,
	hub *ws.Hub,
	pub *internalrepo.KafkaRunPublisher,
	l *applogger.Logger,
) *usecase.PipelineRunner {
	notifiers := []repository.RunNotifier{snap, hub}
	if pub != nil {
		notifiers = append(notifiers, pub)
	}
	return usecase.NewPipelineRunner(fetcher, engine, store, m, cfg.Markets.IDs, cfg.Markets.DaysBack,
		usecase.WithNotifiers(notifiers...),
		usecase.WithRunnerLogger(l),
	)
}

// ProvideScheduler registers the daily and retention jobs.
func ProvideScheduler(cfg *config.Config, runner *usecase.PipelineRunner, retention *usecase.RetentionService, m repository.Metrics, l *applogger.Logger) (*scheduler.Controller, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	return scheduler.NewController(runner, retention, m, scheduler.Config{
		DailyCron:   cfg.Scheduler.DailyCron,
		CleanupCron: cfg.Scheduler.CleanupCron,
		Location:    loc,
		RunTimeout:  cfg.Scheduler.RunTimeout,
	}, l)
}

// ProvideHistoryService answers read-side queries.
func ProvideHistoryService(store repository.PersistenceGateway) *usecase.HistoryService {
	return usecase.NewHistoryService(store)
}

// ProvideHTTPServer registers every handler on one echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	history *usecase.HistoryService,
	snap *usecase.SnapshotService,
	ctl *scheduler.Controller,
	store *internalrepo.SQLStateStore,
	hub *ws.Hub,
) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewHistoryHandler(l, history, snap),
		api.NewSchedulerHandler(l, ctl, ratelimit.New(), api.TriggerLimits{
			Capacity:     cfg.RateLimit.TriggerCapacity,
			RefillPerSec: cfg.RateLimit.TriggerRefill,
		}, cfg.Scheduler.DaysToKeep),
		api.NewHealthHandler(l, store),
		hub,
	}
	return xhttp.NewServer(handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	)
}

// ProvideApp assembles the application and the resources it must close.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	ctl *scheduler.Controller,
	store *internalrepo.SQLStateStore,
	ch *pkgch.Client,
	cache icache.BytesCache,
	pub *internalrepo.KafkaRunPublisher,
	hub *ws.Hub,
) *server.App {
	resources := []server.Resource{{Name: "state_store", Closer: store}}
	if ch != nil {
		resources = append(resources, server.Resource{Name: "clickhouse", Closer: ch})
	}
	if rc, ok := cache.(*icache.RedisCache); ok {
		resources = append(resources, server.Resource{Name: "redis", Closer: rc})
	}
	if pub != nil {
		resources = append(resources, server.Resource{Name: "kafka_publisher", Closer: pub})
	}
	resources = append(resources, server.Resource{Name: "websocket_hub", Closer: hub})
	return server.New(l, srv, ctl, cfg.Scheduler.Enabled, cfg.Server.ShutdownTimeout, resources...)
}
