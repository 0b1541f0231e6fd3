package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mekongwire/reader-pulse/internal/models"
)

const topSearchesCap = 10

// SearchReport ranks the most frequent reader search queries.
type SearchReport struct {
	TopQueries    []Bucket  `json:"topQueries"`
	TotalSearches int       `json:"totalSearches"`
	Timeframe     string    `json:"timeframe"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// TopSearches aggregates search events for the timeframe. Queries are
// case-folded and trimmed before counting; events without a query are
// counted in the total but not ranked.
func (s *Service) TopSearches(ctx context.Context, timeframe string) (*SearchReport, error) {
	start, end, normalized := s.window(timeframe)

	events, err := s.store.ListByTypes(ctx, []string{models.EventSearch}, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search events: %w", err)
	}

	queries := newCounter()
	for _, e := range events {
		q := strings.ToLower(strings.TrimSpace(e.SearchQuery()))
		if q == "" {
			continue
		}
		queries.Add(q)
	}

	return &SearchReport{
		TopQueries:    topN(queries, topSearchesCap),
		TotalSearches: len(events),
		Timeframe:     normalized,
		LastUpdated:   s.now(),
	}, nil
}
