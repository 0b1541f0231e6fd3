package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mekongwire/reader-pulse/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	topArticlesCap  = 10
	recentEventsCap = 10
)

// RealTimeMetrics are the headline dashboard numbers.
type RealTimeMetrics struct {
	PageViews      int `json:"pageViews"`
	UniqueSessions int `json:"uniqueSessions"`
	Shares         int `json:"shares"`
	Searches       int `json:"searches"`
}

// ArticleCount ranks one article by views.
type ArticleCount struct {
	ArticleID string `json:"articleId"`
	Views     int    `json:"views"`
}

// EventSummary is one row of the recent-events feed.
type EventSummary struct {
	EventType string    `json:"eventType"`
	ArticleID string    `json:"articleId,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DashboardReport is the full dashboard payload. All fields are present
// and zeroed when the window is empty; consumers never need null guards.
type DashboardReport struct {
	RealTimeMetrics   RealTimeMetrics `json:"realTimeMetrics"`
	TopArticles       []ArticleCount  `json:"topArticles"`
	PlatformBreakdown []Bucket        `json:"platformBreakdown"`
	ShareBreakdown    []Bucket        `json:"shareBreakdown"`
	HourlyActivity    []Bucket        `json:"hourlyActivity"`
	RecentEvents      []EventSummary  `json:"recentEvents"`
	Timeframe         string          `json:"timeframe"`
	LastUpdated       time.Time       `json:"lastUpdated"`
}

// Dashboard aggregates reader activity for the requested timeframe.
// The three event-log slices are independent reads of an immutable log,
// so they are fetched concurrently and awaited together. Any fetch
// failure fails the whole report; there is no partial result.
func (s *Service) Dashboard(ctx context.Context, timeframe string) (*DashboardReport, error) {
	start, end, normalized := s.window(timeframe)

	var pageViews, shares, searches []*models.Event

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pageViews, err = s.store.ListByTypes(gctx, []string{models.EventPageView}, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		shares, err = s.store.ListByTypes(gctx, []string{models.EventShare}, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		searches, err = s.store.ListByTypes(gctx, []string{models.EventSearch}, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard events: %w", err)
	}

	articleViews := newCounter()
	for _, e := range pageViews {
		if e.ArticleID != "" {
			articleViews.Add(e.ArticleID)
		}
	}

	topArticles := make([]ArticleCount, 0, topArticlesCap)
	for _, b := range topN(articleViews, topArticlesCap) {
		topArticles = append(topArticles, ArticleCount{ArticleID: b.Key, Views: b.Count})
	}

	platforms := countBy(pageViews, (*models.Event).PlatformBucket)
	shareTargets := countBy(shares, (*models.Event).SharePlatform)

	report := &DashboardReport{
		RealTimeMetrics: RealTimeMetrics{
			PageViews:      len(pageViews),
			UniqueSessions: uniqueCount(pageViews, func(e *models.Event) string { return e.SessionID }),
			Shares:         len(shares),
			Searches:       len(searches),
		},
		TopArticles:       topArticles,
		PlatformBreakdown: platforms.Entries(),
		ShareBreakdown:    shareTargets.Entries(),
		HourlyActivity:    hourlySeries(pageViews),
		RecentEvents:      recentEvents(pageViews, shares, searches),
		Timeframe:         normalized,
		LastUpdated:       s.now(),
	}

	return report, nil
}

// recentEvents merges the fetched slices and returns the newest entries,
// most recent first.
func recentEvents(slices ...[]*models.Event) []EventSummary {
	var all []*models.Event
	for _, slice := range slices {
		all = append(all, slice...)
	}

	// Slices arrive sorted ascending; a simple selection of the tail
	// would not interleave types, so sort the merged set.
	summaries := make([]EventSummary, 0, len(all))
	for _, e := range all {
		summaries = append(summaries, EventSummary{
			EventType: e.EventType,
			ArticleID: e.ArticleID,
			Platform:  e.Platform,
			Language:  e.Language,
			Timestamp: e.Timestamp,
		})
	}
	sortSummariesDesc(summaries)

	if len(summaries) > recentEventsCap {
		summaries = summaries[:recentEventsCap]
	}
	return summaries
}

func sortSummariesDesc(summaries []EventSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
}
