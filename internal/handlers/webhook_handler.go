package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/pkg/observability"
)

// WebhookHandler ingests gateway webhook events and dispatches them to
// the card binding flow or the billing orchestrator. The response is
// always 200 so the gateway stops retrying; failed events are logged and
// counted and converge through redelivery or reconciliation.
type WebhookHandler struct {
	cards   ports.CardsManager
	billing ports.BillingManager
	logger  *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(cards ports.CardsManager, billing ports.BillingManager, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		cards:   cards,
		billing: billing,
		logger:  logger,
	}
}

// Register mounts the webhook route. The route carries no auth and no
// rate limit.
func (h *WebhookHandler) Register(r gin.IRouter) {
	r.POST("/webhooks/payment", h.Handle)
}

// webhookEnvelope is the gateway event wrapper
type webhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// paymentIntentObject carries the payment intent fields the billing flow
// needs. The subscription ID travels in the intent metadata.
type paymentIntentObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// chargeObject carries the charge fields of a refund event. The intent
// ID lives on the charge's payment_intent reference.
type chargeObject struct {
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type paymentMethodObject struct {
	Customer string `json:"customer"`
	Card     struct {
		Last4 string `json:"last4"`
	} `json:"card"`
}

type setupIntentObject struct {
	Customer      string `json:"customer"`
	PaymentMethod string `json:"payment_method"`
}

// Handle dispatches one gateway event. Unknown event types log a warning
// and still return success.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var envelope webhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		h.logger.Warn("Undecodable webhook payload", zap.Error(err))
		observability.RecordWebhookEvent("undecodable", "ignored")
		c.JSON(http.StatusOK, gin.H{"detail": "success"})
		return
	}

	outcome := "processed"
	if err := h.dispatch(c, &envelope); err != nil {
		h.logger.Error("Webhook processing failed",
			zap.String("event_type", envelope.Type),
			zap.Error(err),
		)
		outcome = "failed"
	}
	observability.RecordWebhookEvent(envelope.Type, outcome)

	c.JSON(http.StatusOK, gin.H{"detail": "success"})
}

func (h *WebhookHandler) dispatch(c *gin.Context, envelope *webhookEnvelope) error {
	ctx := c.Request.Context()

	switch envelope.Type {
	case ports.EventCardAttached:
		var object paymentMethodObject
		if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
			return err
		}
		return h.cards.HandleCardAttached(ctx, ports.CardAttachedEvent{
			GatewayCustomerID: object.Customer,
			LastDigits:        object.Card.Last4,
		})

	case ports.EventSetupSucceeded:
		var object setupIntentObject
		if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
			return err
		}
		return h.cards.HandleSetupSucceeded(ctx, ports.SetupSucceededEvent{
			GatewayCustomerID: object.Customer,
			PaymentMethod:     object.PaymentMethod,
		})

	case ports.EventSetupFailed:
		var object setupIntentObject
		if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
			return err
		}
		return h.cards.HandleSetupFailed(ctx, ports.SetupFailedEvent{
			GatewayCustomerID: object.Customer,
		})

	case ports.EventPaymentSucceeded, ports.EventPaymentFailed:
		var object paymentIntentObject
		if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
			return err
		}
		return h.billing.HandlePaymentWebhook(ctx, envelope.Type, ports.PaymentEvent{
			IntentID:       object.ID,
			SubscriptionID: object.Metadata["subscription_id"],
		})

	case ports.EventChargeRefunded:
		var object chargeObject
		if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
			return err
		}
		return h.billing.HandlePaymentWebhook(ctx, envelope.Type, ports.PaymentEvent{
			IntentID:       object.PaymentIntent,
			SubscriptionID: object.Metadata["subscription_id"],
		})

	default:
		h.logger.Warn("Unhandled webhook event type", zap.String("event_type", envelope.Type))
		return nil
	}
}
