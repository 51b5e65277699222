package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/subwave/billing-service/internal/adapters/rabbitmq"
	"github.com/subwave/billing-service/internal/config"
	"github.com/subwave/billing-service/internal/workers"
	httpkg "github.com/subwave/billing-service/pkg/http"
	"github.com/subwave/billing-service/pkg/observability"
	"github.com/subwave/billing-service/pkg/shutdown"
)

const sidecarTimeout = 10 * time.Second

func main() {
	queue := flag.String("queue", "all", "queue to consume: auth, notification or all")
	flag.Parse()

	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting billing worker",
		zap.String("queue", *queue),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadFromEnv(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
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

	sidecarClient := httpkg.NewHTTPClient(httpkg.SidecarClientConfig(), sidecarTimeout)

	// One tracker across all consumers bounds shutdown to deliveries
	// already handed to a sidecar.
	tracker := shutdown.NewInFlightTracker("sidecar-deliveries", logger)

	var handlers []workers.Handler
	switch *queue {
	case "auth":
		handlers = append(handlers,
			workers.NewAuthWorker(sidecarClient, cfg.Sidecars.AuthServiceURL, cfg.Sidecars.SecretToken))
	case "notification":
		handlers = append(handlers,
			workers.NewNotificationWorker(sidecarClient, cfg.Sidecars.NotificationServiceURL, cfg.Sidecars.SecretToken))
	case "all":
		handlers = append(handlers,
			workers.NewAuthWorker(sidecarClient, cfg.Sidecars.AuthServiceURL, cfg.Sidecars.SecretToken),
			workers.NewNotificationWorker(sidecarClient, cfg.Sidecars.NotificationServiceURL, cfg.Sidecars.SecretToken))
	default:
		logger.Fatal("Unknown queue", zap.String("queue", *queue))
	}

	healthChecker := observability.NewHealthChecker(nil)
	healthChecker.AddCheck("rabbitmq", func(ctx context.Context) error {
		if !broker.IsConnected() {
			return errors.New("broker connection down")
		}
		return nil
	})
	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker, logger)

	// LIFO shutdown: consumers stop first, in-flight deliveries drain,
	// then the broker connection closes.
	sm := shutdown.NewManager(logger, cfg.ShutdownWait)
	sm.RegisterCloser("rabbitmq", broker)
	sm.RegisterHTTPServer("metrics-server", metricsServer)
	sm.Register("in-flight-deliveries", tracker.Shutdown)

	for _, handler := range handlers {
		worker := workers.NewWorker(broker, handler, tracker, logger)
		bg := shutdown.NewBackgroundWorker(handler.Queue()+"-consumer", logger)
		bg.Start(worker.Run)
		sm.Register(handler.Queue()+"-consumer", bg.Shutdown)
	}

	sm.WaitForShutdown()
	logger.Info("Billing worker stopped")
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
