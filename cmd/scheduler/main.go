package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/subwave/billing-service/internal/adapters/postgres"
	"github.com/subwave/billing-service/internal/adapters/rabbitmq"
	"github.com/subwave/billing-service/internal/adapters/stripe"
	"github.com/subwave/billing-service/internal/config"
	"github.com/subwave/billing-service/internal/scheduler"
	billingService "github.com/subwave/billing-service/internal/services/billing"
	paymentService "github.com/subwave/billing-service/internal/services/payment"
	subscriptionService "github.com/subwave/billing-service/internal/services/subscription"
	transactionService "github.com/subwave/billing-service/internal/services/transaction"
	"github.com/subwave/billing-service/pkg/observability"
	"github.com/subwave/billing-service/pkg/shutdown"
)

func main() {
	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting billing scheduler")

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

	db := postgres.NewDBExecutor(pool)
	planRepo := postgres.NewPlanRepository(db)
	subRepo := postgres.NewSubscriptionRepository(db)
	txnRepo := postgres.NewTransactionRepository(db)
	cardRepo := postgres.NewCardRepository(db)

	processorCfg := stripe.DefaultProcessorConfig(cfg.Stripe.APIKey)
	processorCfg.SuccessURL = cfg.Stripe.SuccessURL
	processorCfg.CancelURL = cfg.Stripe.CancelURL
	processor := stripe.NewProcessor(processorCfg, logger)

	authEvents := rabbitmq.NewAuthEventPublisher(broker, logger)
	notifications := rabbitmq.NewNotificationPublisher(broker, logger)

	serviceLogger := observability.NewZapLogger(logger)
	subscriptions := subscriptionService.NewService(db, subRepo, planRepo, serviceLogger)
	transactions := transactionService.NewService(db, txnRepo, serviceLogger)
	payments := paymentService.NewManager(transactions, cardRepo, processor, serviceLogger)
	billing := billingService.NewManager(subscriptions, payments, cardRepo,
		authEvents, notifications, cfg.Stripe.Currency, serviceLogger)

	sweeper := scheduler.NewSweeper(subRepo, billing,
		cfg.Scheduler.Interval, cfg.Scheduler.BatchSize, logger)
	sweeper.Start()

	healthChecker := observability.NewHealthChecker(pool)
	healthChecker.AddCheck("rabbitmq", func(ctx context.Context) error {
		if !broker.IsConnected() {
			return errors.New("broker connection down")
		}
		return nil
	})
	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker, logger)

	// LIFO shutdown: the sweeper finishes its batch before the broker
	// and database close under it.
	sm := shutdown.NewManager(logger, cfg.ShutdownWait)
	sm.RegisterNoErr("postgres", pool.Close)
	sm.RegisterCloser("rabbitmq", broker)
	sm.RegisterHTTPServer("metrics-server", metricsServer)
	sm.Register("expiry-sweeper", sweeper.Shutdown)

	sm.WaitForShutdown()
	logger.Info("Billing scheduler stopped")
}

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
