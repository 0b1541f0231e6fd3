package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Well-known event types. The log itself stores an open string, so
// aggregation must tolerate values outside this set.
const (
	EventPageView       = "page_view"
	EventPopupShown     = "popup_shown"
	EventPopupDismissed = "popup_dismissed"
	EventPopupLinkClick = "popup_link_click"
	EventHubClick       = "event_hub_click"
	EventShare          = "share"
	EventSurveyResponse = "voter_survey_response"
	EventSearch         = "search"
)

// UnknownBucket is the grouping bucket for missing or unparseable
// dimension values. Rows are never dropped over bad metadata.
const UnknownBucket = "Unknown"

// Event is one immutable recorded reader interaction. Timestamp is the
// source of truth for all time windowing.
type Event struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	// Optional correlation fields, not enforced as foreign keys.
	SessionID string `json:"session_id,omitempty"`
	Platform  string `json:"platform,omitempty"`
	ArticleID string `json:"article_id,omitempty"`
	Language  string `json:"language,omitempty"`

	// Country is geo-enriched from the client IP at ingestion.
	Country string `json:"country,omitempty"`

	Metadata Metadata `json:"metadata,omitempty"`
}

// Metadata is the typed payload attached to an event. Each event type
// carries its own shape; payloads for unrecognized types are kept as raw
// JSON so the log stays open-ended.
type Metadata interface {
	Kind() string
}

// PageViewMeta is attached to page_view events.
type PageViewMeta struct {
	Referrer string `json:"referrer,omitempty"`
	Section  string `json:"section,omitempty"`
}

func (PageViewMeta) Kind() string { return EventPageView }

// PopupMeta is attached to popup_shown, popup_dismissed and
// popup_link_click events.
type PopupMeta struct {
	LinkType       string `json:"link_type,omitempty"`
	DestinationURL string `json:"destination_url,omitempty"`
	UserState      string `json:"user_state,omitempty"`
	EventName      string `json:"event_name,omitempty"`
}

func (PopupMeta) Kind() string { return EventPopupShown }

// HubClickMeta is attached to event_hub_click events.
type HubClickMeta struct {
	EventName      string `json:"event_name,omitempty"`
	LinkType       string `json:"link_type,omitempty"`
	DestinationURL string `json:"destination_url,omitempty"`
}

func (HubClickMeta) Kind() string { return EventHubClick }

// ShareMeta is attached to share events.
type ShareMeta struct {
	Platform string `json:"platform,omitempty"`
}

func (ShareMeta) Kind() string { return EventShare }

// SurveyMeta is attached to voter_survey_response events.
type SurveyMeta struct {
	EventName string `json:"event_name,omitempty"`
	UserState string `json:"user_state,omitempty"`
	Response  string `json:"response,omitempty"`
}

func (SurveyMeta) Kind() string { return EventSurveyResponse }

// SearchMeta is attached to search events.
type SearchMeta struct {
	Query string `json:"query,omitempty"`
}

func (SearchMeta) Kind() string { return EventSearch }

// RawMeta holds the payload of an event type this service does not model.
type RawMeta struct {
	Type string
	Data json.RawMessage
}

func (r RawMeta) Kind() string { return r.Type }

func (r RawMeta) MarshalJSON() ([]byte, error) {
	if len(r.Data) == 0 {
		return []byte("{}"), nil
	}
	return r.Data, nil
}

// ParseMetadata decodes a raw metadata payload into the typed shape for
// the given event type. Validation happens here, at ingestion, so the
// read side never has to re-parse free-form maps.
func ParseMetadata(eventType string, raw json.RawMessage) (Metadata, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	switch eventType {
	case EventPageView:
		var m PageViewMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid page_view metadata: %w", err)
		}
		return m, nil

	case EventPopupShown, EventPopupDismissed, EventPopupLinkClick:
		var m PopupMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid popup metadata: %w", err)
		}
		return m, nil

	case EventHubClick:
		var m HubClickMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid event_hub_click metadata: %w", err)
		}
		return m, nil

	case EventShare:
		var m ShareMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid share metadata: %w", err)
		}
		return m, nil

	case EventSurveyResponse:
		var m SurveyMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid survey metadata: %w", err)
		}
		return m, nil

	case EventSearch:
		var m SearchMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid search metadata: %w", err)
		}
		return m, nil

	default:
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid metadata payload for %q", eventType)
		}
		return RawMeta{Type: eventType, Data: raw}, nil
	}
}

// EncodeMetadata serializes a metadata payload for storage.
func EncodeMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Accessors below centralize the parse-or-default behavior: one corrupt
// or foreign row groups under "Unknown" instead of breaking a report.

// LinkType returns the metadata link_type or "Unknown".
func (e *Event) LinkType() string {
	switch m := e.Metadata.(type) {
	case PopupMeta:
		if m.LinkType != "" {
			return m.LinkType
		}
	case HubClickMeta:
		if m.LinkType != "" {
			return m.LinkType
		}
	}
	return UnknownBucket
}

// DestinationURL returns the metadata destination_url or "Unknown".
func (e *Event) DestinationURL() string {
	switch m := e.Metadata.(type) {
	case PopupMeta:
		if m.DestinationURL != "" {
			return m.DestinationURL
		}
	case HubClickMeta:
		if m.DestinationURL != "" {
			return m.DestinationURL
		}
	}
	return UnknownBucket
}

// EventName returns the metadata event_name or "Unknown".
func (e *Event) EventName() string {
	switch m := e.Metadata.(type) {
	case PopupMeta:
		if m.EventName != "" {
			return m.EventName
		}
	case HubClickMeta:
		if m.EventName != "" {
			return m.EventName
		}
	case SurveyMeta:
		if m.EventName != "" {
			return m.EventName
		}
	}
	return UnknownBucket
}

// SharePlatform returns the share target platform or "Unknown".
func (e *Event) SharePlatform() string {
	if m, ok := e.Metadata.(ShareMeta); ok && m.Platform != "" {
		return m.Platform
	}
	return UnknownBucket
}

// SearchQuery returns the search query, or "" when absent.
func (e *Event) SearchQuery() string {
	if m, ok := e.Metadata.(SearchMeta); ok {
		return m.Query
	}
	return ""
}

// PlatformBucket returns the event platform or "Unknown".
func (e *Event) PlatformBucket() string {
	if e.Platform != "" {
		return e.Platform
	}
	return UnknownBucket
}
