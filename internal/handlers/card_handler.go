package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/ports"
)

// CardHandler serves the card binding and management endpoints
type CardHandler struct {
	cards  ports.CardsManager
	logger *zap.Logger
}

// NewCardHandler creates a new card handler
func NewCardHandler(cards ports.CardsManager, logger *zap.Logger) *CardHandler {
	return &CardHandler{
		cards:  cards,
		logger: logger,
	}
}

// Register mounts the card routes
func (h *CardHandler) Register(r gin.IRouter) {
	cards := r.Group("/cards")
	cards.GET("", h.List)
	cards.POST("/checkout-session", h.CreateBindingSession)
	cards.POST("/set-default", h.SetDefault)
	cards.DELETE("/:id", h.Delete)
}

// List returns the caller's successfully bound cards
func (h *CardHandler) List(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	cards, err := h.cards.ListUserCards(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, cards)
}

// CreateBindingSession starts a hosted card binding session and redirects
// the caller to the gateway
func (h *CardHandler) CreateBindingSession(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	redirectURL, err := h.cards.CreateBindingSession(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Redirect(http.StatusSeeOther, redirectURL)
}

// SetDefault makes the card named by the card_id query param the
// caller's default
func (h *CardHandler) SetDefault(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	cardID := c.Query("card_id")
	if cardID == "" {
		respondError(c, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed, "card_id is required"))
		return
	}

	if err := h.cards.SetDefault(c.Request.Context(), identity.UserID, cardID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "success"})
}

// Delete detaches the card at the gateway and removes it
func (h *CardHandler) Delete(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.cards.DeleteCard(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "success"})
}
