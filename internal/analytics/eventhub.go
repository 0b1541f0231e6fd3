package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/mekongwire/reader-pulse/internal/models"
	"golang.org/x/sync/errgroup"
)

const topDestinationsCap = 10

// HubSummary carries the headline event-hub numbers.
type HubSummary struct {
	TotalClicks      int     `json:"totalClicks"`
	UniqueSessions   int     `json:"uniqueSessions"`
	ClickThroughRate float64 `json:"clickThroughRate"`
}

// EventHubReport is the full event-hub-clicks payload.
type EventHubReport struct {
	Summary         HubSummary   `json:"summary"`
	EventTotals     []Bucket     `json:"event_totals"`
	DailyTrends     []DailyPoint `json:"daily_trends"`
	TopDestinations []Bucket     `json:"top_destinations"`
	StartDate       string       `json:"start_date"`
	EndDate         string       `json:"end_date"`
	LastUpdated     time.Time    `json:"lastUpdated"`
}

// EventHubClicks aggregates hub-link activity over [startDate, endDate]
// (inclusive ISO dates). Zero values fall back to the trailing 30 days.
// Hub clicks and the page views that anchor the click-through rate are
// independent slices of the log, fetched concurrently.
func (s *Service) EventHubClicks(ctx context.Context, startDate, endDate string) (*EventHubReport, error) {
	start, end := s.resolveDateRange(startDate, endDate)

	var clicks, pageViews []*models.Event

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clicks, err = s.store.ListByTypes(gctx, []string{models.EventHubClick}, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		pageViews, err = s.store.ListByTypes(gctx, []string{models.EventPageView}, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch event hub events: %w", err)
	}

	eventTotals := countBy(clicks, (*models.Event).EventName)
	destinations := countBy(clicks, (*models.Event).DestinationURL)

	report := &EventHubReport{
		Summary: HubSummary{
			TotalClicks:      len(clicks),
			UniqueSessions:   uniqueCount(clicks, func(e *models.Event) string { return e.SessionID }),
			ClickThroughRate: rate(len(clicks), len(pageViews)),
		},
		EventTotals:     eventTotals.Entries(),
		DailyTrends:     dailySeries(clicks, start, end.Add(-time.Nanosecond)),
		TopDestinations: topN(destinations, topDestinationsCap),
		StartDate:       start.Format("2006-01-02"),
		EndDate:         end.Add(-time.Nanosecond).Format("2006-01-02"),
		LastUpdated:     s.now(),
	}

	return report, nil
}

// resolveDateRange parses inclusive ISO dates into a [start, end) window.
// Unparseable or missing values default to the trailing 30 days.
func (s *Service) resolveDateRange(startDate, endDate string) (time.Time, time.Time) {
	now := s.now()

	end := now
	if t, err := time.Parse("2006-01-02", endDate); err == nil {
		// Inclusive end date: the window runs to the following midnight.
		end = t.AddDate(0, 0, 1)
	}

	start := end.AddDate(0, 0, -30)
	if t, err := time.Parse("2006-01-02", startDate); err == nil {
		start = t
	}

	if start.After(end) {
		start = end.AddDate(0, 0, -30)
	}

	return start, end
}
