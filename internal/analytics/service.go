package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mekongwire/reader-pulse/internal/config"
	"github.com/mekongwire/reader-pulse/internal/metrics"
	"github.com/mekongwire/reader-pulse/internal/models"
	"github.com/mekongwire/reader-pulse/internal/storage"
	"go.uber.org/zap"
)

// Timeframe values accepted by report endpoints.
const (
	Timeframe1h  = "1h"
	Timeframe24h = "24h"
	Timeframe7d  = "7d"
	Timeframe30d = "30d"
	TimeframeAll = "all"
)

// ErrStoreWrite marks ingestion failures caused by the event log rather
// than the request itself.
var ErrStoreWrite = errors.New("failed to store event")

// GeoResolver resolves a client IP to a country name.
type GeoResolver interface {
	Country(ip string) string
}

// Service ingests interaction events and computes reports over the
// event log. Reports are computed fresh per request; nothing is cached
// between requests.
type Service struct {
	store   storage.EventStore
	geo     GeoResolver
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     config.AnalyticsConfig

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewService constructs an analytics service. geo may be nil.
func NewService(store storage.EventStore, geo GeoResolver, cfg config.AnalyticsConfig, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		geo:     geo,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// window maps a timeframe string to [start, now). Unknown values are
// silently mapped to the configured default rather than rejected.
func (s *Service) window(timeframe string) (start, end time.Time, normalized string) {
	end = s.now()

	switch timeframe {
	case Timeframe1h:
		return end.Add(-time.Hour), end, timeframe
	case Timeframe24h:
		return end.Add(-24 * time.Hour), end, timeframe
	case Timeframe7d:
		return end.AddDate(0, 0, -7), end, timeframe
	case Timeframe30d:
		return end.AddDate(0, 0, -30), end, timeframe
	case TimeframeAll:
		return s.cfg.EpochDate, end, timeframe
	default:
		def := s.cfg.DefaultTimeframe
		if def == "" || def == timeframe {
			def = Timeframe24h
		}
		start, end, _ = s.window(def)
		return start, end, def
	}
}

// TrackRequest is the ingestion payload.
type TrackRequest struct {
	EventType string          `json:"event_type"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Platform  string          `json:"platform,omitempty"`
	ArticleID string          `json:"article_id,omitempty"`
	Language  string          `json:"language,omitempty"`
}

// TrackResult reports the outcome of one ingestion write.
type TrackResult struct {
	Success         bool   `json:"success"`
	EventID         string `json:"event_id"`
	TrackedLanguage string `json:"tracked_language"`
}

// Track validates and appends one event to the log, enriching it with
// the country resolved from the client IP.
func (s *Service) Track(ctx context.Context, req TrackRequest, clientIP string) (*TrackResult, error) {
	if req.EventType == "" {
		return nil, fmt.Errorf("event_type is required")
	}

	meta, err := models.ParseMetadata(req.EventType, req.Metadata)
	if err != nil {
		return nil, err
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	event := &models.Event{
		ID:        uuid.New().String(),
		EventType: req.EventType,
		Timestamp: s.now(),
		SessionID: req.SessionID,
		Platform:  req.Platform,
		ArticleID: req.ArticleID,
		Language:  language,
		Metadata:  meta,
	}

	if s.geo != nil && clientIP != "" {
		event.Country = s.geo.Country(clientIP)
	}

	if err := s.store.Insert(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.RecordTrackFailure("store")
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	if s.metrics != nil {
		s.metrics.RecordEventTracked(event.EventType, event.Language)
	}

	s.logger.Debug("event tracked",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("language", event.Language),
	)

	return &TrackResult{
		Success:         true,
		EventID:         event.ID,
		TrackedLanguage: event.Language,
	}, nil
}
