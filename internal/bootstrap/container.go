package bootstrap

import (
	"context"
	"sync"
	"time"

	"calliope/internal/adapters/ai"
	chclient "calliope/internal/adapters/clickhouse"
	"calliope/internal/adapters/config"
	"calliope/internal/adapters/kafka"
	pgclient "calliope/internal/adapters/postgres"
	redisclient "calliope/internal/adapters/redis"
	telegram "calliope/internal/adapters/telegram"
	"calliope/internal/agents"
	"calliope/internal/api"
	"calliope/internal/api/health"
	"calliope/internal/domain/audit"
	"calliope/internal/domain/generation"
	"calliope/internal/domain/usage"
	"calliope/internal/events"
	chrepo "calliope/internal/repository/clickhouse"
	auditsvc "calliope/internal/services/audit"
	"calliope/internal/services/costs"
	generationsvc "calliope/internal/services/generation"
	usagesvc "calliope/internal/services/usage"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores)
	PG    *pgclient.Client
	CH    *chclient.Client // nil when the analytics mirror is disabled
	Redis *redisclient.Client

	// Domain Layer
	Repos    *Repositories
	Services *Services

	// External Adapters
	Adapters *Adapters

	// Application Layer
	Application *Application

	// Lifecycle management
	WG      *sync.WaitGroup
	Context context.Context
	Cancel  context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	UsageSummary  usage.Repository
	AuditRequest  audit.Repository
	GenerationJob generation.Repository

	// Best-effort ClickHouse mirror of the audit log; nil when disabled
	AuditAnalytics *chrepo.AuditAnalyticsRepository
}

// Services groups all domain services
type Services struct {
	Costs      *costs.Calculator
	Usage      *usagesvc.Service
	Audit      *auditsvc.Service
	Generation *generationsvc.Service
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer *kafka.Producer // nil when Kafka is disabled
	Publisher     *events.Publisher
	Notifier      *telegram.Notifier // nil when Telegram is disabled

	AIProviders   *ai.Registry
	AgentRegistry *agents.Registry
	ProgressHub   *events.ProgressHub
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Services:    &Services{},
		Adapters:    &Adapters{},
		Application: &Application{},
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
}

// Start starts all background components and the HTTP server
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// Start the ClickHouse batch flush loop
	if c.Repos.AuditAnalytics != nil {
		c.Repos.AuditAnalytics.Start(c.Context)
		c.Log.Info("✓ Audit analytics mirror started")
	}

	// Start HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order:
// stop accepting requests, flush outbound buffers, close stores.
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := c.Application.HTTPServer.Shutdown(shutdownCtx); err != nil {
		c.Log.Errorf("Error stopping HTTP server: %v", err)
	}

	// Cancel the root context; in-flight generation jobs run on detached
	// contexts and persist their own terminal state.
	c.Cancel()

	if c.Repos.AuditAnalytics != nil {
		if err := c.Repos.AuditAnalytics.Stop(shutdownCtx); err != nil {
			c.Log.Errorf("Error stopping audit analytics mirror: %v", err)
		}
	}

	if c.Adapters.KafkaProducer != nil {
		if err := c.Adapters.KafkaProducer.Close(); err != nil {
			c.Log.Errorf("Error closing Kafka producer: %v", err)
		}
	}

	if c.CH != nil {
		if err := c.CH.Close(); err != nil {
			c.Log.Errorf("Error closing ClickHouse: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Errorf("Error closing Redis: %v", err)
		}
	}
	if c.PG != nil {
		if err := c.PG.Close(); err != nil {
			c.Log.Errorf("Error closing PostgreSQL: %v", err)
		}
	}

	waitDone := make(chan struct{})
	go func() {
		c.WG.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(c.Config.Server.ShutdownTimeout):
		c.Log.Warn("Shutdown timed out waiting for background goroutines")
	}

	if c.ErrorTracker != nil {
		_ = c.ErrorTracker.Flush(context.Background())
	}

	c.Log.Info("✓ Shutdown complete")
}
