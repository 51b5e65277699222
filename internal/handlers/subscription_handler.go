package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
)

// SubscriptionHandler serves the subscription lifecycle endpoints. Reads
// go straight to the subscription service; commands with side effects go
// through the billing manager.
type SubscriptionHandler struct {
	billing       ports.BillingManager
	subscriptions ports.SubscriptionService
	logger        *zap.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(billing ports.BillingManager, subscriptions ports.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		billing:       billing,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// Register mounts the subscription routes
func (h *SubscriptionHandler) Register(r gin.IRouter) {
	subs := r.Group("/subscriptions")
	subs.GET("", h.List)
	subs.POST("", h.Create)
	subs.GET("/:id", h.Get)
	subs.POST("/:id/pay", h.Pay)
	subs.POST("/:id/cancel", h.Cancel)
	subs.POST("/:id/renew", h.Renew)
	subs.POST("/:id/toggle_auto_renewal", h.ToggleAutoRenewal)
}

type createSubscriptionRequest struct {
	PlanID      string `json:"plan_id" binding:"required"`
	AutoRenewal bool   `json:"auto_renewal"`
}

type renewSubscriptionRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// List returns subscriptions visible to the caller, newest first
func (h *SubscriptionHandler) List(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	subs, err := h.subscriptions.List(c.Request.Context(), ports.ListSubscriptionsQuery{
		CallerID: identity.UserID,
		Admin:    identity.IsAdmin(),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, subs)
}

// Create writes a new PENDING subscription for the caller
func (h *SubscriptionHandler) Create(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	sub, err := h.billing.CreateSubscription(c.Request.Context(), identity.UserID, ports.CreateSubscriptionRequest{
		PlanID:      req.PlanID,
		AutoRenewal: req.AutoRenewal,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// Get retrieves a subscription. Non-admin callers may only read their
// own.
func (h *SubscriptionHandler) Get(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	sub, err := h.subscriptions.Get(c.Request.Context(), identity.UserID, identity.IsAdmin(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Pay charges the caller's card for the subscription. The card_id query
// param selects a card; without it the default card is charged.
func (h *SubscriptionHandler) Pay(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	txn, err := h.billing.InitiateSubscriptionPayment(c.Request.Context(), identity.UserID, c.Query("card_id"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

// Cancel cancels the caller's subscription
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	sub, err := h.billing.CancelSubscription(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Renew extends the subscription by its plan duration and charges the
// caller's default card
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req renewSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	txn, err := h.billing.RenewSubscription(c.Request.Context(), identity.UserID, c.Param("id"), req.PlanID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

// ToggleAutoRenewal flips the subscription's auto-renewal flag
func (h *SubscriptionHandler) ToggleAutoRenewal(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	sub, err := h.billing.ToggleAutoRenewal(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}
