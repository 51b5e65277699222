package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/subwave/billing-service/internal/adapters/postgres"
	"github.com/subwave/billing-service/internal/adapters/rabbitmq"
	"github.com/subwave/billing-service/internal/adapters/stripe"
	"github.com/subwave/billing-service/internal/auth"
	"github.com/subwave/billing-service/internal/config"
	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/internal/handlers"
	"github.com/subwave/billing-service/internal/middleware"
	billingService "github.com/subwave/billing-service/internal/services/billing"
	cardsService "github.com/subwave/billing-service/internal/services/cards"
	paymentService "github.com/subwave/billing-service/internal/services/payment"
	planService "github.com/subwave/billing-service/internal/services/plan"
	subscriptionService "github.com/subwave/billing-service/internal/services/subscription"
	transactionService "github.com/subwave/billing-service/internal/services/transaction"
	"github.com/subwave/billing-service/pkg/observability"
	"github.com/subwave/billing-service/pkg/shutdown"
)

func main() {
	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting billing service",
		zap.String("version", "0.1.0"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadFromEnv(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	postgres.StartPoolMonitoring(ctx, pool, logger, time.Minute)

	broker, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:         cfg.Broker.Host,
		Port:         cfg.Broker.Port,
		User:         cfg.Broker.User,
		Password:     cfg.Broker.Password,
		ExchangeName: cfg.Broker.ExchangeName,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message broker", zap.Error(err))
	}

	deps := initDependencies(pool, broker, cfg, logger)

	tokens, err := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
	if err != nil {
		logger.Fatal("Failed to initialize token manager", zap.Error(err))
	}

	isDevelopment := cfg.Environment != "production"
	engine := handlers.NewRouter(handlers.RouterConfig{
		Plans:          deps.plans,
		Subscriptions:  deps.subscriptions,
		Transactions:   deps.transactions,
		Cards:          deps.cards,
		Billing:        deps.billing,
		Auth:           middleware.NewAuthMiddleware(tokens, logger),
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Security:       middleware.NewSecurityHeaders(isDevelopment),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(pool)
	healthChecker.AddCheck("rabbitmq", func(ctx context.Context) error {
		if !broker.IsConnected() {
			return errors.New("broker connection down")
		}
		return nil
	})
	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker, logger)

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// LIFO shutdown: stop accepting requests, then close the broker and
	// finally the database pool.
	sm := shutdown.NewManager(logger, cfg.ShutdownWait)
	sm.RegisterNoErr("postgres", pool.Close)
	sm.RegisterCloser("rabbitmq", broker)
	sm.RegisterHTTPServer("metrics-server", metricsServer)
	sm.RegisterHTTPServer("http-server", server)

	sm.WaitForShutdown()
	logger.Info("Billing service stopped")
}

// dependencies holds the wired service layer
type dependencies struct {
	plans         ports.PlanService
	subscriptions ports.SubscriptionService
	transactions  ports.TransactionService
	cards         ports.CardsManager
	billing       ports.BillingManager
}

// initDependencies wires repositories, gateway adapters and publishers
// into the service layer
func initDependencies(pool *pgxpool.Pool, broker *rabbitmq.Client, cfg *config.Config, logger *zap.Logger) *dependencies {
	db := postgres.NewDBExecutor(pool)
	planRepo := postgres.NewPlanRepository(db)
	subRepo := postgres.NewSubscriptionRepository(db)
	txnRepo := postgres.NewTransactionRepository(db)
	cardRepo := postgres.NewCardRepository(db)

	processorCfg := stripe.DefaultProcessorConfig(cfg.Stripe.APIKey)
	processorCfg.SuccessURL = cfg.Stripe.SuccessURL
	processorCfg.CancelURL = cfg.Stripe.CancelURL
	processor := stripe.NewProcessor(processorCfg, logger)

	publisher := rabbitmq.NewPublisher(broker, logger)
	authEvents := rabbitmq.NewAuthEventPublisher(broker, logger)
	notifications := rabbitmq.NewNotificationPublisher(broker, logger)

	serviceLogger := observability.NewZapLogger(logger)

	plans := planService.NewService(db, planRepo, serviceLogger)
	subscriptions := subscriptionService.NewService(db, subRepo, planRepo, serviceLogger)
	transactions := transactionService.NewService(db, txnRepo, serviceLogger)
	cards := cardsService.NewManager(db, cardRepo, processor, notifications, serviceLogger)
	payments := paymentService.NewManager(transactions, cardRepo, processor, serviceLogger)

	billing := billingService.NewManager(subscriptions, payments, cardRepo,
		authEvents, notifications, cfg.Stripe.Currency, serviceLogger)

	// Events whose first publish failed are replayed once, off the
	// request path.
	billing.SetPublishFailureHook(func(queue string, event interface{}) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.Publish(ctx, queue, event); err != nil {
			logger.Error("Event replay failed",
				zap.String("queue", queue),
				zap.Error(err),
			)
		}
	})

	return &dependencies{
		plans:         plans,
		subscriptions: subscriptions,
		transactions:  transactions,
		cards:         cards,
		billing:       billing,
	}
}

// initLogger builds the process logger from the environment. It runs
// before configuration loads, so it reads the variables directly.
func initLogger() *zap.Logger {
	if os.Getenv("ENVIRONMENT") == "production" {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(parseLogLevel(os.Getenv("LOG_LEVEL")))
		logger, _ := zapCfg.Build()
		return logger
	}

	logger, _ := zap.NewDevelopment()
	return logger
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
