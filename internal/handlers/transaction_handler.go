package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
)

// TransactionHandler serves the payment attempt record endpoints
type TransactionHandler struct {
	service ports.TransactionService
	logger  *zap.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service ports.TransactionService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the transaction routes
func (h *TransactionHandler) Register(r gin.IRouter) {
	txns := r.Group("/transactions")
	txns.GET("", h.List)
	txns.GET("/:id", h.Get)
}

// List returns transactions visible to the caller, newest first. Admin
// callers may narrow the listing to one user with the user_id query
// param. An empty result is a 404.
func (h *TransactionHandler) List(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	txns, err := h.service.List(c.Request.Context(), ports.ListTransactionsQuery{
		CallerID: identity.UserID,
		Admin:    identity.IsAdmin(),
		UserID:   c.Query("user_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if len(txns) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Transactions with such params not found"})
		return
	}

	c.JSON(http.StatusOK, txns)
}

// Get retrieves a transaction. Non-admin callers may only read their
// own.
func (h *TransactionHandler) Get(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	txn, err := h.service.Get(c.Request.Context(), identity.UserID, identity.IsAdmin(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}
