package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mekongwire/reader-pulse/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer spins up the full handler chain on in-memory stores.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Analytics: config.AnalyticsConfig{
			EpochDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			DefaultTimeframe: "24h",
		},
	}

	handler := NewServer(&Dependencies{
		Config: cfg,
		Logger: zap.NewNop(),
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, "ok", body.Status)

	// Without backing connections every store reports its fallback.
	require.Equal(t, map[string]string{
		"event_log":   "in-memory",
		"subscribers": "in-memory",
		"hearts":      "in-memory",
	}, body.Components)
}

func TestTrackThenDashboard(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := postJSON(t, srv.URL+"/analytics/track", map[string]any{
			"event_type": "page_view",
			"article_id": "42",
			"session_id": "s1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/analytics/track", map[string]any{
			"event_type": "page_view",
			"article_id": "7",
			"session_id": "s2",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/analytics/dashboard?timeframe=24h")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		RealTimeMetrics struct {
			PageViews      int `json:"pageViews"`
			UniqueSessions int `json:"uniqueSessions"`
		} `json:"realTimeMetrics"`
		TopArticles []struct {
			ArticleID string `json:"articleId"`
			Views     int    `json:"views"`
		} `json:"topArticles"`
		Timeframe string `json:"timeframe"`
	}
	decodeBody(t, resp, &report)

	require.Equal(t, 5, report.RealTimeMetrics.PageViews)
	require.Equal(t, 2, report.RealTimeMetrics.UniqueSessions)
	require.Equal(t, "24h", report.Timeframe)

	require.Len(t, report.TopArticles, 2)
	require.Equal(t, "42", report.TopArticles[0].ArticleID)
	require.Equal(t, 3, report.TopArticles[0].Views)
	require.Equal(t, "7", report.TopArticles[1].ArticleID)
}

func TestTrackRejectsMissingEventType(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/analytics/track", map[string]any{"article_id": "1"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrackRejectsInvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/analytics/track", "application/json", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPopupMetricsEmpty(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/analytics/popup-metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Metrics struct {
			PopupShown     int     `json:"popupShown"`
			ConversionRate float64 `json:"conversionRate"`
			EngagementRate float64 `json:"engagementRate"`
		} `json:"metrics"`
	}
	decodeBody(t, resp, &report)

	require.Equal(t, 0, report.Metrics.PopupShown)
	require.Equal(t, float64(0), report.Metrics.ConversionRate)
	require.Equal(t, float64(0), report.Metrics.EngagementRate)
}

func TestEventHubClicksEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/analytics/track", map[string]any{
		"event_type": "event_hub_click",
		"session_id": "s1",
		"metadata":   map[string]any{"event_name": "primary"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp2, err := http.Get(srv.URL + "/analytics/event-hub-clicks")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var report struct {
		Summary struct {
			TotalClicks int `json:"totalClicks"`
		} `json:"summary"`
	}
	decodeBody(t, resp2, &report)
	require.Equal(t, 1, report.Summary.TotalClicks)
}

func TestTopSearchesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	for _, q := range []string{"Election", "election"} {
		resp := postJSON(t, srv.URL+"/analytics/track", map[string]any{
			"event_type": "search",
			"metadata":   map[string]any{"query": q},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/analytics/top-searches")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		TopQueries []struct {
			Key   string `json:"key"`
			Count int    `json:"count"`
		} `json:"topQueries"`
		TotalSearches int `json:"totalSearches"`
	}
	decodeBody(t, resp, &report)

	require.Equal(t, 2, report.TotalSearches)
	require.Len(t, report.TopQueries, 1)
	require.Equal(t, "election", report.TopQueries[0].Key)
	require.Equal(t, 2, report.TopQueries[0].Count)
}

func TestReportEndpointsRejectPost(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{
		"/analytics/dashboard",
		"/analytics/popup-metrics",
		"/analytics/event-hub-clicks",
		"/analytics/top-searches",
	} {
		resp := postJSON(t, srv.URL+path, map[string]any{})
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestArticleHearts(t *testing.T) {
	srv := newTestServer(t)

	var count struct {
		ArticleID string `json:"article_id"`
		Hearts    int64  `json:"hearts"`
	}

	resp := postJSON(t, srv.URL+"/articles/42/heart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &count)
	require.Equal(t, "42", count.ArticleID)
	require.Equal(t, int64(1), count.Hearts)

	resp = postJSON(t, srv.URL+"/articles/42/heart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &count)
	require.Equal(t, int64(2), count.Hearts)

	resp2, err := http.Get(srv.URL + "/articles/42/heart")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	decodeBody(t, resp2, &count)
	require.Equal(t, int64(2), count.Hearts)

	// Unknown article reads zero.
	resp3, err := http.Get(srv.URL + "/articles/7/heart")
	require.NoError(t, err)
	decodeBody(t, resp3, &count)
	require.Equal(t, int64(0), count.Hearts)
}

func TestArticleHeartsBadPath(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/articles/42/likes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewsletterSubscribe(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/newsletter/subscribe", map[string]any{
		"email":    "reader@example.com",
		"language": "ko",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sub struct {
		Email    string `json:"email"`
		Status   string `json:"status"`
		Language string `json:"language"`
	}
	decodeBody(t, resp, &sub)
	require.Equal(t, "reader@example.com", sub.Email)
	require.Equal(t, "pending", sub.Status)
	require.Equal(t, "ko", sub.Language)

	// Unsubscribe completes the lifecycle.
	resp2 := postJSON(t, srv.URL+"/newsletter/unsubscribe", map[string]any{
		"email": "reader@example.com",
	})
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestNewsletterSubscribeInvalidEmail(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/newsletter/subscribe", map[string]any{"email": "nope"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewsletterConfirmUnknownToken(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/newsletter/confirm?token=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewsletterUnsubscribeUnknownEmail(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/newsletter/unsubscribe", map[string]any{
		"email": "ghost@example.com",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
