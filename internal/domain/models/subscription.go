package models

import "time"

// SubscriptionStatus represents the subscription lifecycle state
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// subscriptionTransitions is the set of legal lifecycle transitions.
// Cancelled and expired are terminal.
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusPending: {SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusExpired},
	SubscriptionStatusActive:  {SubscriptionStatusCancelled, SubscriptionStatusExpired},
}

// CanTransitionTo reports whether moving to next is a legal lifecycle change.
// A same-state transition is not legal; callers treat it as a no-op instead.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	for _, allowed := range subscriptionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

// Valid reports whether s is a known subscription status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusPending, SubscriptionStatusActive,
		SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// Subscription represents a user's subscription to a plan
type Subscription struct {
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	PlanID      string             `json:"plan_id"`
	Status      SubscriptionStatus `json:"status"`
	AutoRenewal bool               `json:"auto_renewal"`
}

// IsActive returns true if the subscription is currently active
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// IsDue reports whether the subscription's paid period has elapsed at t.
func (s *Subscription) IsDue(t time.Time) bool {
	return !s.EndDate.After(t)
}
