// Package bootstrap assembles the pricing engine from configuration. It is
// shared by the HTTP server and the command line analyzer.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dtslogistics/pricing-agent/internal/cache"
	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/database"
	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/services"
	"github.com/dtslogistics/pricing-agent/pkg/dat"
	"github.com/dtslogistics/pricing-agent/pkg/gazetteer"
	"github.com/dtslogistics/pricing-agent/pkg/greenscreens"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/dtslogistics/pricing-agent/pkg/kafka"
	"github.com/dtslogistics/pricing-agent/pkg/openai"
	"github.com/dtslogistics/pricing-agent/pkg/routes"
	"github.com/dtslogistics/pricing-agent/pkg/storage"
)

// Components holds the connections opened for one process. Optional stores
// are nil when they are not configured or not reachable.
type Components struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Metrics    *metrics.Recorder
	Timeouts   *services.TimeoutManager
	Postgres   *database.PostgresDB
	Redis      *database.RedisClient
	ClickHouse *database.ClickHouseDB
	Recovery   *services.ErrorRecoveryManager
	Quotes     *cache.QuoteCache // nil without Redis

	closers []func()
}

// Connect opens the stores the configuration asks for. A store that a
// required feature depends on is fatal; Redis is always optional.
func Connect(cfg *config.Config, recorder *metrics.Recorder, logger *logrus.Logger) (*Components, error) {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Components{
		Config:   cfg,
		Logger:   logger,
		Metrics:  recorder,
		Timeouts: services.NewTimeoutManager(services.TimeoutConfigFrom(cfg), logger),
		Recovery: providerRecovery(cfg, logger),
	}

	if cfg.Lookup.Source == config.LookupSourcePostgres || cfg.Audit.PostgresEnabled {
		db, err := database.NewPostgresConnection(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.Postgres = db
		c.closers = append(c.closers, db.Close)
	}

	if cfg.Lookup.Source == config.LookupSourceClickHouse {
		ch, err := database.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		c.ClickHouse = ch
		c.closers = append(c.closers, func() { _ = ch.Close() })
	}

	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, quote cache and alert de-duplication disabled")
	} else {
		c.Redis = redisClient
		c.closers = append(c.closers, redisClient.Close)
		c.Quotes = cache.NewQuoteCache(redisClient.Client, config.Duration(cfg.Providers.QuoteCacheTTL, 15*time.Minute), logger)
	}

	return c, nil
}

// providerRecovery registers the configured retry policy and breaker for
// each market-rate provider.
func providerRecovery(cfg *config.Config, logger *logrus.Logger) *services.ErrorRecoveryManager {
	policy := services.RetryPolicyFrom(cfg)
	breaker := services.BreakerConfigFrom(cfg)
	recovery := services.NewErrorRecoveryManager(logger, policy)
	for _, provider := range []string{cache.ProviderDAT, cache.ProviderGreenScreens} {
		recovery.RegisterRetryPolicy(provider, policy)
		recovery.RegisterCircuitBreaker(provider, breaker)
	}
	return recovery
}

// Close releases every connection in reverse order of opening.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// HealthChecks returns a ping per open store, keyed by display name.
func (c *Components) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if c.Postgres != nil {
		checks["database"] = c.Postgres.HealthCheck
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.HealthCheck
	}
	if c.ClickHouse != nil {
		checks["clickhouse"] = c.ClickHouse.HealthCheck
	}
	return checks
}

// LookupSource builds the configured historical table source.
func (c *Components) LookupSource() (interfaces.LookupSource, error) {
	cfg := c.Config
	switch cfg.Lookup.Source {
	case config.LookupSourceFile:
		return database.NewCSVFileSource(cfg.Lookup.FilePath), nil
	case config.LookupSourceBlob:
		store, err := storage.NewAzureStore(cfg.Storage.ConnString(), cfg.Storage.Container, c.Logger)
		if err != nil {
			return nil, err
		}
		return storage.NewBlobLookupSource(store, cfg.Storage.LookupBlob), nil
	case config.LookupSourcePostgres:
		if c.Postgres == nil {
			return nil, fmt.Errorf("lookup source postgres requires a database connection")
		}
		return database.NewPostgresLookupSource(database.NewTracedDB(c.Postgres.Pool), cfg.Lookup.PostgresTable), nil
	case config.LookupSourceClickHouse:
		if c.ClickHouse == nil {
			return nil, fmt.Errorf("lookup source clickhouse requires a clickhouse connection")
		}
		return database.NewClickHouseLookupSource(c.ClickHouse.DB, cfg.ClickHouse.Table), nil
	default:
		return nil, fmt.Errorf("unknown lookup source %q", cfg.Lookup.Source)
	}
}

// AnalysisService wires providers, caches and policy into the engine.
// Providers without credentials are left out and reported as unavailable
// on each analysis.
func (c *Components) AnalysisService(now func() time.Time) (*services.AnalysisService, error) {
	cfg := c.Config
	providerTimeout := config.Duration(cfg.Providers.Timeout, 45*time.Second)

	md := services.MarketDataDeps{
		Recovery:          c.Recovery,
		Timeouts:          c.Timeouts,
		Metrics:           c.Metrics,
		RequestsPerSecond: cfg.Providers.RateLimit.RequestsPerSecond,
		Burst:             cfg.Providers.RateLimit.Burst,
		Quotes:            c.Quotes,
	}
	if cfg.Providers.DAT.Enabled() {
		md.DAT = dat.NewClient(cfg.Providers.DAT, providerTimeout, c.Logger)
	} else {
		c.Logger.Warn("DAT credentials not configured, DAT rates disabled")
	}
	if cfg.Providers.GreenScreens.Enabled() {
		md.GreenScreens = greenscreens.NewClient(cfg.Providers.GreenScreens, providerTimeout, c.Logger)
	} else {
		c.Logger.Warn("GreenScreens credentials not configured, GreenScreens rates disabled")
	}

	var geocoder interfaces.GeocodeProvider
	if g, err := gazetteer.Load(cfg.Providers.GazetteerFile); err != nil {
		c.Logger.WithError(err).Warn("ZIP gazetteer unavailable, stops must carry city and state")
	} else {
		geocoder = g
	}

	var distance interfaces.DistanceProvider
	if cfg.Providers.Routes.APIKey != "" {
		distance = routes.NewClient(cfg.Providers.Routes, providerTimeout)
	} else {
		c.Logger.Warn("GOOGLE_MAPS_API_KEY not set, route mileage disabled")
	}

	rules, err := config.LoadSegmentRules(cfg.Pricing.SegmentsFile)
	if err != nil {
		return nil, err
	}

	return services.NewAnalysisService(cfg.Pricing, services.AnalysisDeps{
		Locations:  services.NewLocationResolver(geocoder, c.Logger),
		MarketData: services.NewMarketDataService(md, c.Logger),
		Distance:   distance,
		Timeouts:   c.Timeouts,
		Segments:   services.NewSegmentClassifier(rules),
		Metrics:    c.Metrics,
	}, c.Logger, now), nil
}

// AuditSinks builds the enabled audit destinations. A sink that cannot be
// built is logged and skipped.
func (c *Components) AuditSinks() []interfaces.AuditSink {
	cfg := c.Config
	var sinks []interfaces.AuditSink

	if cfg.Audit.BlobEnabled {
		store, err := storage.NewAzureStore(cfg.Storage.ConnString(), cfg.Storage.AuditContainer, c.Logger)
		if err != nil {
			c.Logger.WithError(err).Warn("Blob audit sink disabled")
		} else {
			sinks = append(sinks, storage.NewBlobCSVSink(store, cfg.Storage.AuditBlob))
		}
	}
	if cfg.Audit.PostgresEnabled && c.Postgres != nil {
		sinks = append(sinks, database.NewPostgresAuditSink(database.NewTracedDB(c.Postgres.Pool)))
	}
	if cfg.Audit.KafkaEnabled {
		sink, err := kafka.NewAuditSink(cfg.Kafka)
		if err != nil {
			c.Logger.WithError(err).Warn("Kafka audit sink disabled")
		} else {
			sinks = append(sinks, sink)
			c.closers = append(c.closers, func() { _ = sink.Close() })
		}
	}
	return sinks
}

// Recommender returns the AI recommendation service, or nil when the
// feature is disabled or lacks an API key.
func (c *Components) Recommender() interfaces.Recommender {
	cfg := c.Config
	if !cfg.AI.Enabled {
		return nil
	}
	svc, err := services.NewAIRecommendationService(cfg.AI, openai.NewClient(cfg.AI), c.Timeouts, c.Logger)
	if err != nil {
		c.Logger.WithError(err).Warn("AI recommendations disabled")
		return nil
	}
	return svc
}

// Notifier returns the Telegram review notifier. Without a bot token the
// notifier is returned disabled.
func (c *Components) Notifier() *services.NotificationService {
	cfg := c.Config
	var sender services.MessageSender
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		s, err := services.NewTelegramSender(cfg.Telegram.BotToken)
		if err != nil {
			c.Logger.WithError(err).Warn("Telegram alerts disabled")
		} else {
			sender = s
		}
	}
	var redisClient *redis.Client
	if c.Redis != nil {
		redisClient = c.Redis.Client
	}
	return services.NewNotificationService(sender, cfg.Telegram.ChatID, redisClient,
		config.Duration(cfg.Telegram.DedupTTL, time.Hour), c.Metrics, c.Logger)
}
