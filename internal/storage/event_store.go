package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mekongwire/reader-pulse/internal/models"
)

// InMemoryEventStore provides in-memory storage for events. It backs the
// service when ClickHouse is unavailable and is the substrate for tests.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []*models.Event
}

// NewInMemoryEventStore creates a new in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

// Insert appends one event to the log.
func (s *InMemoryEventStore) Insert(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy so callers cannot mutate the log after the fact.
	e := *event
	s.events = append(s.events, &e)
	return nil
}

// ListByTypes returns events in [start, end) matching any of types,
// ordered by timestamp ascending.
func (s *InMemoryEventStore) ListByTypes(ctx context.Context, types []string, start, end time.Time) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeSet := make(map[string]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}

	result := make([]*models.Event, 0)
	for _, e := range s.events {
		if len(typeSet) > 0 {
			if _, ok := typeSet[e.EventType]; !ok {
				continue
			}
		}
		if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
			continue
		}
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// Len returns the number of stored events.
func (s *InMemoryEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
