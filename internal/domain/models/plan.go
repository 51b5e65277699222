package models

import "time"

// SubscriptionPlan represents a purchasable subscription tier.
// Price is stored in minor currency units (cents).
type SubscriptionPlan struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"`
	DurationDays int       `json:"duration_days"`
	IsArchive    bool      `json:"is_archive"`
}

// Duration returns the plan's billing period as a time.Duration.
func (p *SubscriptionPlan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
