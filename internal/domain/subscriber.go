package domain

import "time"

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberPendingConfirmation SubscriberStatus = "pending_confirmation"
	SubscriberConfirmed           SubscriberStatus = "confirmed"
)

// Subscriber is the durable subscriptions row.
type Subscriber struct {
	ID           string           `json:"id" db:"id"`
	Email        string           `json:"email" db:"email"`
	Name         string           `json:"name" db:"name"`
	SubscribedAt time.Time        `json:"subscribed_at" db:"subscribed_at"`
	Status       SubscriberStatus `json:"status" db:"status"`
}

// SubscriptionToken binds a single-use confirmation token to a subscriber.
type SubscriptionToken struct {
	Token        string `json:"-" db:"subscription_token"`
	SubscriberID string `json:"subscriber_id" db:"subscriber_id"`
}
