package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/mekongwire/reader-pulse/internal/models"
	"go.uber.org/zap"
)

// ClickHouseEventStore implements EventStore on the ClickHouse event log.
//
// Expected table:
//
//	CREATE TABLE events (
//	    id         String,
//	    event_type LowCardinality(String),
//	    timestamp  DateTime('UTC'),
//	    session_id String,
//	    platform   LowCardinality(String),
//	    article_id String,
//	    language   LowCardinality(String),
//	    country    LowCardinality(String),
//	    metadata   String
//	) ENGINE = MergeTree ORDER BY (event_type, timestamp)
type ClickHouseEventStore struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseEventStore creates a new ClickHouse-backed event store.
func NewClickHouseEventStore(conn driver.Conn, logger *zap.Logger) *ClickHouseEventStore {
	return &ClickHouseEventStore{conn: conn, logger: logger}
}

// Insert appends one event to the log.
func (s *ClickHouseEventStore) Insert(ctx context.Context, event *models.Event) error {
	meta, err := models.EncodeMetadata(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO events (id, event_type, timestamp, session_id, platform, article_id, language, country, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.EventType, event.Timestamp, event.SessionID, event.Platform,
		event.ArticleID, event.Language, event.Country, string(meta))

	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListByTypes returns events in [start, end) matching any of types,
// ordered by timestamp ascending.
func (s *ClickHouseEventStore) ListByTypes(ctx context.Context, types []string, start, end time.Time) ([]*models.Event, error) {
	query := `
		SELECT id, event_type, timestamp, session_id, platform, article_id, language, country, metadata
		FROM events
		WHERE timestamp >= ? AND timestamp < ?
	`
	args := []interface{}{start, end}

	if len(types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
		query += fmt.Sprintf(" AND event_type IN (%s)", placeholders)
		for _, t := range types {
			args = append(args, t)
		}
	}
	query += " ORDER BY timestamp"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		var rawMeta string

		if err := rows.Scan(&e.ID, &e.EventType, &e.Timestamp, &e.SessionID, &e.Platform,
			&e.ArticleID, &e.Language, &e.Country, &rawMeta); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		// A corrupt metadata blob degrades to an empty payload; the row
		// still counts under its "Unknown" dimension buckets.
		meta, err := models.ParseMetadata(e.EventType, json.RawMessage(rawMeta))
		if err != nil {
			s.logger.Warn("unparseable event metadata",
				zap.String("event_id", e.ID),
				zap.String("event_type", e.EventType),
				zap.Error(err),
			)
			meta, _ = models.ParseMetadata(e.EventType, nil)
		}
		e.Metadata = meta

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}

	return events, nil
}
