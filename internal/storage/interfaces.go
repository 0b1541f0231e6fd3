package storage

import (
	"context"
	"time"

	"github.com/mekongwire/reader-pulse/internal/models"
)

// EventStore is the read/append surface over the interaction event log.
// The log is append-only: aggregation reads slices, never mutates.
type EventStore interface {
	// Insert appends one event to the log.
	Insert(ctx context.Context, event *models.Event) error

	// ListByTypes returns events whose type is in types and whose
	// timestamp falls in [start, end), ordered by timestamp ascending.
	// An empty types slice matches every event type.
	ListByTypes(ctx context.Context, types []string, start, end time.Time) ([]*models.Event, error)
}

// SubscriberRepo stores newsletter subscribers.
type SubscriberRepo interface {
	Create(ctx context.Context, sub *models.Subscriber) error
	GetByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	GetByToken(ctx context.Context, token string) (*models.Subscriber, error)
	UpdateStatus(ctx context.Context, id, status string, confirmedAt *time.Time) error
}
