package analytics

import (
	"testing"
	"time"

	"github.com/mekongwire/reader-pulse/internal/models"
	"github.com/stretchr/testify/require"
)

func TestRate(t *testing.T) {
	require.Equal(t, float64(0), rate(5, 0), "zero denominator must yield 0, not NaN")
	require.Equal(t, float64(0), rate(0, 0))
	require.Equal(t, float64(50), rate(1, 2))
	require.Equal(t, 33.33, rate(1, 3))
	require.Equal(t, 66.67, rate(2, 3))
	require.Equal(t, float64(100), rate(7, 7))
}

func TestCounterGroupsEveryEvent(t *testing.T) {
	events := []*models.Event{
		{EventType: models.EventPageView, Platform: "web"},
		{EventType: models.EventPageView, Platform: "ios"},
		{EventType: models.EventPageView}, // no platform
		{EventType: models.EventPageView, Platform: "web"},
	}

	c := countBy(events, (*models.Event).PlatformBucket)

	// Sum of buckets equals the input size; nothing is dropped.
	require.Equal(t, len(events), c.Total())
	require.Equal(t, 2, c.Get("web"))
	require.Equal(t, 1, c.Get("ios"))
	require.Equal(t, 1, c.Get(models.UnknownBucket))
}

func TestCounterEntriesFirstSeenOrder(t *testing.T) {
	c := newCounter()
	for _, key := range []string{"b", "a", "c", "a", "b", "a"} {
		c.Add(key)
	}

	entries := c.Entries()
	require.Equal(t, []Bucket{
		{Key: "b", Count: 2},
		{Key: "a", Count: 3},
		{Key: "c", Count: 1},
	}, entries)
}

func TestTopN(t *testing.T) {
	c := newCounter()
	for i := 0; i < 3; i++ {
		c.Add("alpha")
	}
	for i := 0; i < 5; i++ {
		c.Add("beta")
	}
	c.Add("gamma")

	top := topN(c, 2)
	require.Equal(t, []Bucket{
		{Key: "beta", Count: 5},
		{Key: "alpha", Count: 3},
	}, top)
}

func TestTopNTiesKeepFirstSeenOrder(t *testing.T) {
	c := newCounter()
	c.Add("first")
	c.Add("second")
	c.Add("second")
	c.Add("first")

	top := topN(c, 10)
	require.Equal(t, []Bucket{
		{Key: "first", Count: 2},
		{Key: "second", Count: 2},
	}, top)
}

func TestTopNFewerEntriesThanCap(t *testing.T) {
	c := newCounter()
	c.Add("only")

	top := topN(c, 10)
	require.Len(t, top, 1)
}

func TestDailySeriesZeroFillsGaps(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	events := []*models.Event{
		{Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)},
	}

	points := dailySeries(events, start, end)

	require.Equal(t, []DailyPoint{
		{Date: "2026-03-01", Count: 2},
		{Date: "2026-03-02", Count: 0},
		{Date: "2026-03-03", Count: 0},
		{Date: "2026-03-04", Count: 1},
		{Date: "2026-03-05", Count: 0},
	}, points)

	// Dates are strictly ascending regardless of event order.
	for i := 1; i < len(points); i++ {
		require.Less(t, points[i-1].Date, points[i].Date)
	}
}

func TestHourlySeriesSortedAscending(t *testing.T) {
	events := []*models.Event{
		{Timestamp: time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)},
		{Timestamp: time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)},
		{Timestamp: time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)},
	}

	entries := hourlySeries(events)
	require.Equal(t, []Bucket{
		{Key: "2026-03-01 09:00", Count: 1},
		{Key: "2026-03-01 14:00", Count: 2},
	}, entries)
}

func TestUniqueCountSkipsEmpty(t *testing.T) {
	events := []*models.Event{
		{SessionID: "s1"},
		{SessionID: "s2"},
		{SessionID: "s1"},
		{SessionID: ""},
	}

	n := uniqueCount(events, func(e *models.Event) string { return e.SessionID })
	require.Equal(t, 2, n)
}
