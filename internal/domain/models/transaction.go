package models

import "time"

// TransactionStatus represents the payment attempt state
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusSuccess  TransactionStatus = "success"
	TransactionStatusFailed   TransactionStatus = "failed"
	TransactionStatusRefunded TransactionStatus = "refunded"
)

// IsTerminal reports whether the transaction has reached a settled state.
// Webhook redeliveries against a terminal transaction are dropped.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusRefunded:
		return true
	}
	return false
}

// PaymentType identifies the gateway a transaction went through
type PaymentType string

const (
	PaymentTypeStripe PaymentType = "stripe"
	PaymentTypeOther  PaymentType = "other"
)

// Transaction represents a single payment attempt for a subscription.
// Amount is in minor currency units. GatewayIntentID is set once the
// payment intent has been created at the gateway.
type Transaction struct {
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	GatewayIntentID *string           `json:"gateway_intent_id"`
	ID              string            `json:"id"`
	SubscriptionID  string            `json:"subscription_id"`
	UserID          string            `json:"user_id"`
	UserCardID      string            `json:"user_card_id"`
	PaymentType     PaymentType       `json:"payment_type"`
	Status          TransactionStatus `json:"status"`
	Amount          int64             `json:"amount"`
}
