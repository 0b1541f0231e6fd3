package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/mekongwire/reader-pulse/internal/models"
)

const topLinksCap = 5

// PopupMetrics carries the popup engagement numbers for one window.
type PopupMetrics struct {
	PopupShown        int               `json:"popupShown"`
	PopupDismissed    int               `json:"popupDismissed"`
	LinkClicks        int               `json:"linkClicks"`
	EventHubClicks    int               `json:"eventHubClicks"`
	ConversionRate    float64           `json:"conversionRate"`
	EngagementRate    float64           `json:"engagementRate"`
	DailyMetrics      []DailyPopupPoint `json:"dailyMetrics"`
	TopLinks          []Bucket          `json:"topLinks"`
	LinkTypeBreakdown []Bucket          `json:"linkTypeBreakdown"`
}

// DailyPopupPoint is one day of popup activity.
type DailyPopupPoint struct {
	Date           string `json:"date"`
	PopupShown     int    `json:"popupShown"`
	PopupDismissed int    `json:"popupDismissed"`
	LinkClicks     int    `json:"linkClicks"`
}

// PopupReport is the full popup-metrics payload.
type PopupReport struct {
	Metrics     PopupMetrics `json:"metrics"`
	TotalEvents int          `json:"totalEvents"`
	Timeframe   string       `json:"timeframe"`
	Timestamp   time.Time    `json:"timestamp"`
}

// PopupMetricsReport aggregates popup interactions for the timeframe.
// With zero popup_shown events every derived rate is 0, not an error.
func (s *Service) PopupMetricsReport(ctx context.Context, timeframe string) (*PopupReport, error) {
	start, end, normalized := s.window(timeframe)

	events, err := s.store.ListByTypes(ctx, []string{
		models.EventPopupShown,
		models.EventPopupDismissed,
		models.EventPopupLinkClick,
		models.EventHubClick,
	}, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch popup events: %w", err)
	}

	byType := countBy(events, func(e *models.Event) string { return e.EventType })

	shown := byType.Get(models.EventPopupShown)
	dismissed := byType.Get(models.EventPopupDismissed)
	linkClicks := byType.Get(models.EventPopupLinkClick)
	hubClicks := byType.Get(models.EventHubClick)

	linkDest := newCounter()
	linkTypes := newCounter()
	for _, e := range events {
		if e.EventType == models.EventPopupLinkClick {
			linkDest.Add(e.DestinationURL())
			linkTypes.Add(e.LinkType())
		}
	}

	report := &PopupReport{
		Metrics: PopupMetrics{
			PopupShown:        shown,
			PopupDismissed:    dismissed,
			LinkClicks:        linkClicks,
			EventHubClicks:    hubClicks,
			ConversionRate:    rate(linkClicks, shown),
			EngagementRate:    rate(linkClicks+hubClicks, shown),
			DailyMetrics:      dailyPopupSeries(events, start, end),
			TopLinks:          topN(linkDest, topLinksCap),
			LinkTypeBreakdown: linkTypes.Entries(),
		},
		TotalEvents: len(events),
		Timeframe:   normalized,
		Timestamp:   s.now(),
	}

	return report, nil
}

// dailyPopupSeries zero-fills one point per calendar date in the window,
// sorted ascending by the ISO date.
func dailyPopupSeries(events []*models.Event, start, end time.Time) []DailyPopupPoint {
	shown := make(map[string]int)
	dismissed := make(map[string]int)
	clicks := make(map[string]int)

	for _, e := range events {
		date := e.Timestamp.UTC().Format("2006-01-02")
		switch e.EventType {
		case models.EventPopupShown:
			shown[date]++
		case models.EventPopupDismissed:
			dismissed[date]++
		case models.EventPopupLinkClick:
			clicks[date]++
		}
	}

	var points []DailyPopupPoint
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		points = append(points, DailyPopupPoint{
			Date:           date,
			PopupShown:     shown[date],
			PopupDismissed: dismissed[date],
			LinkClicks:     clicks[date],
		})
	}
	return points
}
