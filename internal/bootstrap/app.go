package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"contaixt-gateway/internal/ai"
	"contaixt-gateway/internal/app"
	"contaixt-gateway/internal/cache"
	"contaixt-gateway/internal/config"
	"contaixt-gateway/internal/knowledge"
	"contaixt-gateway/internal/observability"
	"contaixt-gateway/internal/platform/logger"
	mysqlClient "contaixt-gateway/internal/platform/mysql"
	rabbitmqClient "contaixt-gateway/internal/platform/rabbitmq"
	redisClient "contaixt-gateway/internal/platform/redis"
	"contaixt-gateway/internal/repository"
	"contaixt-gateway/internal/worker"
)

type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *observability.PromRecorder

	Knowledge *knowledge.Client
	Relay     *app.ChatRelay
	Vaults    *app.VaultService
	Sources   *app.SourceService

	// optional infrastructure, nil when disabled
	Redis          *redis.Client
	MySQL          *gorm.DB
	MQConn         *amqp.Connection
	ExchangeWorker *worker.ExchangePersistWorker

	shutdownTracing func(context.Context) error
	StartedAt       time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	a := &App{
		Config:    cfg,
		Log:       log,
		Metrics:   observability.NewPromRecorder(),
		StartedAt: time.Now(),
	}

	a.shutdownTracing, err = observability.InitOTel(ctx, log, cfg.App, cfg.Otel)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport
	if cfg.Otel.Enabled {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	a.Knowledge = knowledge.NewClient(
		cfg.Knowledge.BaseURL,
		time.Duration(cfg.Knowledge.TimeoutSeconds)*time.Second,
		log.With("component", "knowledge_client"),
	).WithTransport(transport)

	llm := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, &http.Client{Transport: transport})

	relayOpts := []app.ChatRelayOption{
		app.WithMetrics(a.Metrics),
		app.WithModelName(llm.Model()),
	}

	var guard app.RegistrationGuard
	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		guard = cache.NewRegistrationGuard(a.Redis, time.Duration(cfg.Redis.RegistrationTTLSeconds)*time.Second)
	}

	if cfg.Audit.Enabled {
		if err := a.startAudit(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		relayOpts = append(relayOpts, app.WithExchangeRecorder(
			rabbitmqClient.NewExchangePublisher(a.MQConn, cfg.RabbitMQ.ExchangeAuditQueue),
		))
	}

	a.Relay = app.NewChatRelay(a.Knowledge, llm, log.With("component", "chat_relay"), cfg.Relay.TopK, relayOpts...)
	a.Vaults = app.NewVaultService(a.Knowledge)
	a.Sources = app.NewSourceService(a.Knowledge, guard, log.With("component", "sources"))

	log.Info("bootstrap complete",
		"knowledge_base_url", cfg.Knowledge.BaseURL,
		"llm_model", cfg.LLM.Model,
		"redis", cfg.Redis.Enabled,
		"audit", cfg.Audit.Enabled,
		"otel", cfg.Otel.Enabled,
	)
	return a, nil
}

func (a *App) startAudit(ctx context.Context) error {
	var err error
	a.MySQL, err = mysqlClient.New(ctx, a.Config.MySQLDSN())
	if err != nil {
		return err
	}
	a.MQConn, err = rabbitmqClient.New(ctx, a.Config.RabbitMQ.URL)
	if err != nil {
		return err
	}

	repo := repository.NewChatExchangeRepository(a.MySQL)
	a.ExchangeWorker = worker.NewExchangePersistWorker(a.MQConn, repo, a.Config.RabbitMQ.ExchangeAuditQueue, a.Log)
	if err := a.ExchangeWorker.Start(ctx); err != nil {
		return fmt.Errorf("start exchange worker failed: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.ExchangeWorker != nil {
		a.ExchangeWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			closeErr = err
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return closeErr
}

// HealthChecks returns one probe per configured dependency.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"knowledge": a.Knowledge.Ping,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx, a.Redis) }
	}
	if a.MySQL != nil {
		checks["mysql"] = func(ctx context.Context) error { return mysqlClient.Ping(ctx, a.MySQL) }
	}
	if a.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error { return rabbitmqClient.Ping(a.MQConn) }
	}
	return checks
}
