package bootstrap

import (
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"calliope/internal/adapters/ai"
	chclient "calliope/internal/adapters/clickhouse"
	"calliope/internal/adapters/config"
	errnoop "calliope/internal/adapters/errors/noop"
	"calliope/internal/adapters/errors/sentry"
	"calliope/internal/adapters/kafka"
	pgclient "calliope/internal/adapters/postgres"
	redisclient "calliope/internal/adapters/redis"
	telegram "calliope/internal/adapters/telegram"
	"calliope/internal/agents"
	"calliope/internal/api"
	"calliope/internal/api/health"
	"calliope/internal/domain/pricing"
	"calliope/internal/events"
	"calliope/internal/metrics"
	chrepo "calliope/internal/repository/clickhouse"
	pgrepo "calliope/internal/repository/postgres"
	auditsvc "calliope/internal/services/audit"
	"calliope/internal/services/costs"
	generationsvc "calliope/internal/services/generation"
	usagesvc "calliope/internal/services/usage"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger and metrics
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	metrics.Init()

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure initializes data stores (Postgres, Redis, ClickHouse)
func (c *Container) MustInitInfrastructure() {
	var err error

	c.Log.Info("Connecting to PostgreSQL...")
	c.PG, err = pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("failed to connect postgres: %v", err)
	}
	c.Log.Info("✓ PostgreSQL connected")

	c.Log.Info("Connecting to Redis...")
	c.Redis, err = redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Log.Info("✓ Redis connected")

	if c.Config.ClickHouse.Enabled() {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	} else {
		c.Log.Info("ClickHouse disabled, audit analytics mirror is off")
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories initializes all domain repositories
func (c *Container) MustInitRepositories() {
	db := c.PG.DB()

	c.Repos.UsageSummary = pgrepo.NewUsageSummaryRepository(db)
	c.Repos.AuditRequest = pgrepo.NewAuditRequestRepository(db)
	c.Repos.GenerationJob = pgrepo.NewGenerationJobRepository(db)

	if c.CH != nil {
		c.Repos.AuditAnalytics = chrepo.NewAuditAnalyticsRepository(c.CH.Conn())
	}

	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes Kafka, Telegram and the AI provider registry
func (c *Container) MustInitAdapters() {
	if c.Config.Kafka.Enabled() {
		c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: c.Config.Kafka.Brokers,
		})
		c.Adapters.Publisher = events.NewPublisher(c.Adapters.KafkaProducer)
		c.Log.Infow("✓ Kafka producer initialized", "brokers", c.Config.Kafka.Brokers)
	} else {
		c.Log.Info("Kafka disabled, lifecycle events are off")
	}

	if c.Config.Telegram.Enabled() {
		notifier, err := telegram.NewNotifier(telegram.Config{
			Token:       c.Config.Telegram.BotToken,
			ChatID:      c.Config.Telegram.ChatID,
			HTTPTimeout: 10 * time.Second,
		})
		if err != nil {
			c.Log.Fatalf("failed to init telegram notifier: %v", err)
		}
		c.Adapters.Notifier = notifier
		c.Log.Info("✓ Telegram notifier initialized")
	} else {
		c.Log.Info("Telegram disabled, job notifications are off")
	}

	c.Adapters.AIProviders = provideAIRegistry(c)

	registry, err := agents.BuildRegistry(c.Adapters.AIProviders)
	if err != nil {
		c.Log.Fatalf("failed to build agent registry: %v", err)
	}
	c.Adapters.AgentRegistry = registry

	c.Adapters.ProgressHub = events.NewProgressHub(c.Config.Generation.ProgressBuffer)
}

func provideAIRegistry(c *Container) *ai.Registry {
	registry := ai.NewRegistry()
	aiCfg := c.Config.AI

	if aiCfg.OpenAIKey != "" {
		client, err := ai.NewOpenAIClient(aiCfg.OpenAIKey, float64(aiCfg.RequestsPerMinute), aiCfg.RequestTimeout)
		if err != nil {
			c.Log.Fatalf("failed to init OpenAI client: %v", err)
		}
		if err := registry.Register(client); err != nil {
			c.Log.Fatalf("failed to register OpenAI client: %v", err)
		}
		c.Log.Info("✓ OpenAI provider registered")
	}

	if aiCfg.GeminiKey != "" {
		client, err := ai.NewGoogleClient(c.Context, aiCfg.GeminiKey, float64(aiCfg.RequestsPerMinute), aiCfg.RequestTimeout)
		if err != nil {
			c.Log.Fatalf("failed to init Google client: %v", err)
		}
		if err := registry.Register(client); err != nil {
			c.Log.Fatalf("failed to register Google client: %v", err)
		}
		c.Log.Info("✓ Google provider registered")
	}

	if aiCfg.OpenAIKey == "" && aiCfg.GeminiKey == "" {
		c.Log.Fatal("no AI provider configured: set OPENAI_API_KEY and/or GEMINI_API_KEY")
	}

	return registry
}

// ========================================
// Phase 5: Domain Services
// ========================================

// MustInitServices wires the cost calculator, aggregator, audit log and orchestrator
func (c *Container) MustInitServices() {
	c.Services.Costs = costs.NewCalculator(pricing.NewDefaultProvider())
	c.Services.Usage = usagesvc.NewService(c.Repos.UsageSummary)

	// Typed nils must not reach interface fields; a non-nil interface holding
	// a nil pointer defeats the service's nil checks.
	var analytics auditsvc.Analytics
	if c.Repos.AuditAnalytics != nil {
		analytics = c.Repos.AuditAnalytics
	}
	c.Services.Audit = auditsvc.NewService(c.Repos.AuditRequest, analytics, c.Services.Costs)

	var notifier generationsvc.Notifier
	if c.Adapters.Notifier != nil {
		notifier = c.Adapters.Notifier
	}

	c.Services.Generation = generationsvc.NewService(
		c.Repos.GenerationJob,
		c.Adapters.AgentRegistry,
		c.Adapters.ProgressHub,
		c.Services.Usage,
		c.Services.Audit,
		c.Services.Costs,
		c.Adapters.Publisher,
		notifier,
		c.Redis,
		c.Config.Generation,
	)

	c.Log.Info("✓ Services initialized")
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication wires HTTP handlers and the server
func (c *Container) MustInitApplication() {
	healthHandler := health.New(
		c.Log,
		c.PG.DB(),
		chDriverConn(c.CH),
		c.Redis.Client(),
		c.Config.App.Name,
		Version,
	)
	c.Application.HealthHandler = healthHandler

	var analytics *api.AnalyticsHandler
	if c.Repos.AuditAnalytics != nil {
		analytics = api.NewAnalyticsHandler(c.Repos.AuditAnalytics)
	}

	c.Application.HTTPServer = api.NewServer(c.Config.Server, c.Config.App, Version, api.Handlers{
		Generation: api.NewGenerationHandler(c.Services.Generation),
		Progress:   api.NewProgressHandler(c.Services.Generation),
		Usage:      api.NewUsageHandler(c.Services.Usage),
		Audit:      api.NewAuditHandler(c.Services.Audit),
		Analytics:  analytics,
		Health:     healthHandler,
	})

	c.Log.Info("✓ Application layer initialized")
}

// chDriverConn unwraps the ClickHouse connection, keeping the interface nil
// when the client is absent.
func chDriverConn(client *chclient.Client) driver.Conn {
	if client == nil {
		return nil
	}
	return client.Conn()
}
