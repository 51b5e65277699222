package models

import "time"

// CardStatus represents the card binding state
type CardStatus string

const (
	// CardStatusInit marks a card whose gateway binding is still in flight.
	CardStatusInit    CardStatus = "init"
	CardStatusSuccess CardStatus = "success"
	CardStatusFail    CardStatus = "fail"
)

// UserCard represents a payment card bound to a user through the gateway.
// Token and LastDigits are set only once the gateway confirms the binding.
type UserCard struct {
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Token             *string    `json:"-"`
	LastDigits        *string    `json:"last_numbers"`
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	GatewayCustomerID string     `json:"-"`
	Status            CardStatus `json:"status"`
	IsDefault         bool       `json:"default"`
}

// IsChargeable reports whether the card can back a payment intent.
func (c *UserCard) IsChargeable() bool {
	return c.Status == CardStatusSuccess && c.Token != nil
}
