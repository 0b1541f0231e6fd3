package models

import "time"

// Subscriber lifecycle states.
const (
	SubscriberPending      = "pending"
	SubscriberConfirmed    = "confirmed"
	SubscriberUnsubscribed = "unsubscribed"
)

// Subscriber is one newsletter signup.
type Subscriber struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Language     string     `json:"language"`
	Status       string     `json:"status"`
	ConfirmToken string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
}
