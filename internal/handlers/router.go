package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/internal/middleware"
	"github.com/subwave/billing-service/pkg/observability"
)

// RouterConfig carries the dependencies of the HTTP surface
type RouterConfig struct {
	Plans          ports.PlanService
	Subscriptions  ports.SubscriptionService
	Transactions   ports.TransactionService
	Cards          ports.CardsManager
	Billing        ports.BillingManager
	Auth           *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	Security       *middleware.SecurityHeaders
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter assembles the gin engine with the middleware stack and the
// full route table under /api/v1
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(cfg.Logger))
	engine.Use(cfg.Security.Apply())
	engine.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	engine.Use(observability.MetricsMiddleware())

	api := engine.Group("/api/v1")

	// Gateway webhooks carry no bearer token and must not be rate
	// limited away during an event storm.
	NewWebhookHandler(cfg.Cards, cfg.Billing, cfg.Logger).Register(api)

	protected := api.Group("", cfg.RateLimiter.Limit(), cfg.Auth.RequireAuth())
	NewPlanHandler(cfg.Plans, cfg.Logger).Register(protected, cfg.Auth.RequireAdmin())
	NewSubscriptionHandler(cfg.Billing, cfg.Subscriptions, cfg.Logger).Register(protected)
	NewTransactionHandler(cfg.Transactions, cfg.Logger).Register(protected)
	NewCardHandler(cfg.Cards, cfg.Logger).Register(protected)

	return engine
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		cfg.AllowOrigins = allowedOrigins
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "X-Request-ID")
	return cfg
}
