package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/mekongwire/reader-pulse/internal/models"
)

// Bucket is one dimension value with its event count.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// counter accumulates per-key counts while remembering first-seen key
// order, which is the tie-break for rankings.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) Add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) Get(key string) int {
	return c.counts[key]
}

func (c *counter) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Entries returns buckets in first-seen key order.
func (c *counter) Entries() []Bucket {
	entries := make([]Bucket, 0, len(c.order))
	for _, key := range c.order {
		entries = append(entries, Bucket{Key: key, Count: c.counts[key]})
	}
	return entries
}

// countBy makes a single linear pass over events, bucketing each one by
// the extracted dimension value. Every report shares this routine; only
// the extractors differ.
func countBy(events []*models.Event, dim func(*models.Event) string) *counter {
	c := newCounter()
	for _, e := range events {
		c.Add(dim(e))
	}
	return c
}

// topN returns at most n buckets sorted by count descending. The sort is
// stable, so equal counts keep first-seen order.
func topN(c *counter, n int) []Bucket {
	entries := c.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// rate returns part/whole as a percentage rounded to two decimals.
// A zero denominator yields 0, never NaN.
func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}

// DailyPoint is one day of a trend series.
type DailyPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// dailySeries buckets events by ISO calendar date (UTC) and zero-fills
// every date in [start, end]. The sort key is the ISO date itself, so
// ordering never depends on display formatting or fetch order.
func dailySeries(events []*models.Event, start, end time.Time) []DailyPoint {
	counts := countBy(events, func(e *models.Event) string {
		return e.Timestamp.UTC().Format("2006-01-02")
	})

	var points []DailyPoint
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		points = append(points, DailyPoint{Date: date, Count: counts.Get(date)})
	}
	return points
}

// hourlySeries buckets events by ISO hour. Only hours with activity are
// emitted, sorted ascending by the ISO key.
func hourlySeries(events []*models.Event) []Bucket {
	counts := countBy(events, func(e *models.Event) string {
		return e.Timestamp.UTC().Format("2006-01-02 15:00")
	})

	entries := counts.Entries()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// uniqueCount returns the number of distinct non-empty values produced
// by the extractor.
func uniqueCount(events []*models.Event, dim func(*models.Event) string) int {
	seen := make(map[string]struct{})
	for _, e := range events {
		if v := dim(e); v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}
