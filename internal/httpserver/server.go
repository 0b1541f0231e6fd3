package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mekongwire/reader-pulse/internal/analytics"
	"github.com/mekongwire/reader-pulse/internal/config"
	"github.com/mekongwire/reader-pulse/internal/database"
	"github.com/mekongwire/reader-pulse/internal/engagement"
	"github.com/mekongwire/reader-pulse/internal/geo"
	"github.com/mekongwire/reader-pulse/internal/metrics"
	"github.com/mekongwire/reader-pulse/internal/middleware"
	"github.com/mekongwire/reader-pulse/internal/newsletter"
	"github.com/mekongwire/reader-pulse/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	ClickHouse *database.ClickHouseDB
	DB         *database.PostgresDB
	Redis      *database.RedisDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers and domain services.
type Server struct {
	analyticsService  *analytics.Service
	engagementService *engagement.Service
	newsletterService *newsletter.Service
	logger            *zap.Logger
	config            *config.Config
	metrics           *metrics.Metrics

	// Backing connections, kept for health reporting. Nil handles mean
	// the store runs on its in-memory fallback.
	clickhouse *database.ClickHouseDB
	db         *database.PostgresDB
	redis      *database.RedisDB
}

// NewServer constructs an http.Handler with all routes registered and
// the middleware chain applied. Every backing store falls back to an
// in-memory implementation when its connection is absent.
func NewServer(deps *Dependencies) http.Handler {
	var eventStore storage.EventStore
	if deps.ClickHouse != nil {
		eventStore = storage.NewClickHouseEventStore(deps.ClickHouse.Conn, deps.Logger)
	} else {
		eventStore = storage.NewInMemoryEventStore()
	}

	var subscriberRepo storage.SubscriberRepo
	if deps.DB != nil {
		subscriberRepo = storage.NewPostgresSubscriberRepo(deps.DB.Pool)
	} else {
		subscriberRepo = storage.NewInMemorySubscriberRepo()
	}

	var heartStore engagement.HeartStore
	if deps.Redis != nil {
		heartStore = engagement.NewRedisHeartStore(deps.Redis.Client)
	} else {
		heartStore = engagement.NewInMemoryHeartStore()
	}

	var geoResolver analytics.GeoResolver
	if deps.Config.Geo.Enabled {
		resolver, err := geo.NewMaxMindResolver(deps.Config.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("failed to initialize geo resolver, country enrichment disabled", zap.Error(err))
		} else {
			geoResolver = resolver
		}
	}

	var mailer newsletter.ConfirmationMailer
	if deps.Config.Newsletter.Enabled && deps.Config.Newsletter.MailerEndpoint != "" {
		mailer = newsletter.NewMailer(deps.Config.Newsletter)
	}

	var captcha newsletter.Captcha
	if deps.Config.Captcha.Enabled {
		captcha = newsletter.NewCaptchaVerifier(deps.Config.Captcha.VerifyURL, deps.Config.Captcha.Secret)
	}

	s := &Server{
		analyticsService: analytics.NewService(
			eventStore, geoResolver, deps.Config.Analytics, deps.Metrics, deps.Logger,
		),
		engagementService: engagement.NewService(heartStore, deps.Metrics, deps.Logger),
		newsletterService: newsletter.NewService(
			subscriberRepo, mailer, captcha, deps.Config.Newsletter.ConfirmBaseURL, deps.Metrics, deps.Logger,
		),
		logger:     deps.Logger,
		config:     deps.Config,
		metrics:    deps.Metrics,
		clickhouse: deps.ClickHouse,
		db:         deps.DB,
		redis:      deps.Redis,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Analytics
	mux.HandleFunc("/analytics/track", s.handleTrack)
	mux.HandleFunc("/analytics/dashboard", s.handleDashboard)
	mux.HandleFunc("/analytics/popup-metrics", s.handlePopupMetrics)
	mux.HandleFunc("/analytics/event-hub-clicks", s.handleEventHubClicks)
	mux.HandleFunc("/analytics/top-searches", s.handleTopSearches)

	// Article hearts
	mux.HandleFunc("/articles/", s.handleArticleHearts)

	// Newsletter
	mux.HandleFunc("/newsletter/subscribe", s.handleSubscribe)
	mux.HandleFunc("/newsletter/confirm", s.handleConfirm)
	mux.HandleFunc("/newsletter/unsubscribe", s.handleUnsubscribe)

	recovery := middleware.NewRecoveryMiddleware(deps.Logger)
	logging := middleware.NewLoggingMiddleware(deps.Logger)
	auth := middleware.NewAuthMiddleware(deps.Config.Auth, deps.Logger)
	rateLimit := middleware.NewRateLimitMiddleware(deps.Config.RateLimit, deps.Logger)
	rateLimit.SetMetrics(deps.Metrics)

	return recovery.Handler(logging.Handler(auth.Handler(rateLimit.Handler(mux))))
}

// ---- Health Check ----

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// handleHealth reports per-store health. A store without a backing
// connection reports "in-memory" so the degraded mode is visible; an
// unreachable backend degrades the whole response to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	components := map[string]string{
		"event_log":   "in-memory",
		"subscribers": "in-memory",
		"hearts":      "in-memory",
	}
	healthy := true

	check := func(name string, health func(context.Context) error) {
		if err := health(ctx); err != nil {
			components[name] = "unreachable"
			healthy = false
			s.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
			return
		}
		components[name] = "ok"
	}

	if s.clickhouse != nil {
		check("event_log", s.clickhouse.Health)
	}
	if s.db != nil {
		check("subscribers", s.db.Health)
	}
	if s.redis != nil {
		check("hearts", s.redis.Health)
	}

	resp := healthResponse{Status: "ok", Components: components}
	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		resp.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// ---- Analytics: Ingestion ----

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analytics.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := s.analyticsService.Track(r.Context(), req, middleware.ClientIP(r))
	if err != nil {
		if errors.Is(err, analytics.ErrStoreWrite) {
			s.logger.Error("track error", zap.Error(err))
			s.errorResponse(w, "failed to track event", http.StatusInternalServerError)
			return
		}
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.jsonResponse(w, result)
}

// ---- Analytics: Reports ----

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	report, err := s.analyticsService.Dashboard(r.Context(), r.URL.Query().Get("timeframe"))
	if err != nil {
		s.logger.Error("failed to compute dashboard", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordReportError("dashboard")
		}
		s.errorResponse(w, "failed to compute dashboard", http.StatusInternalServerError)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveReport("dashboard", time.Since(start))
	}
	s.jsonResponse(w, report)
}

func (s *Server) handlePopupMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	report, err := s.analyticsService.PopupMetricsReport(r.Context(), r.URL.Query().Get("timeframe"))
	if err != nil {
		s.logger.Error("failed to compute popup metrics", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordReportError("popup_metrics")
		}
		s.errorResponse(w, "failed to compute popup metrics", http.StatusInternalServerError)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveReport("popup_metrics", time.Since(start))
	}
	s.jsonResponse(w, report)
}

func (s *Server) handleEventHubClicks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	start := time.Now()
	report, err := s.analyticsService.EventHubClicks(r.Context(), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		s.logger.Error("failed to compute event hub clicks", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordReportError("event_hub_clicks")
		}
		s.errorResponse(w, "failed to compute event hub clicks", http.StatusInternalServerError)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveReport("event_hub_clicks", time.Since(start))
	}
	s.jsonResponse(w, report)
}

func (s *Server) handleTopSearches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	report, err := s.analyticsService.TopSearches(r.Context(), r.URL.Query().Get("timeframe"))
	if err != nil {
		s.logger.Error("failed to compute top searches", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordReportError("top_searches")
		}
		s.errorResponse(w, "failed to compute top searches", http.StatusInternalServerError)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveReport("top_searches", time.Since(start))
	}
	s.jsonResponse(w, report)
}

// ---- Article Hearts ----

// handleArticleHearts routes /articles/{id}/heart.
func (s *Server) handleArticleHearts(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/articles/")
	articleID, action, found := strings.Cut(rest, "/")
	if !found || action != "heart" || articleID == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		count, err := s.engagementService.Heart(r.Context(), articleID)
		if err != nil {
			s.logger.Error("failed to record heart", zap.Error(err))
			s.errorResponse(w, "failed to record heart", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, count)

	case http.MethodGet:
		count, err := s.engagementService.Hearts(r.Context(), articleID)
		if err != nil {
			s.logger.Error("failed to read hearts", zap.Error(err))
			s.errorResponse(w, "failed to read hearts", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, count)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Newsletter ----

type subscribeRequest struct {
	Email        string `json:"email"`
	Language     string `json:"language,omitempty"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	sub, err := s.newsletterService.Subscribe(r.Context(), req.Email, req.Language, req.CaptchaToken, middleware.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, newsletter.ErrInvalidEmail):
			s.errorResponse(w, "invalid email address", http.StatusBadRequest)
		case errors.Is(err, newsletter.ErrCaptchaFailed):
			s.errorResponse(w, "captcha verification failed", http.StatusForbidden)
		default:
			s.logger.Error("subscribe error", zap.Error(err))
			s.errorResponse(w, "failed to subscribe", http.StatusInternalServerError)
		}
		return
	}

	s.jsonResponse(w, sub)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sub, err := s.newsletterService.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, newsletter.ErrTokenNotFound) {
			s.errorResponse(w, "unknown confirmation token", http.StatusNotFound)
			return
		}
		s.logger.Error("confirm error", zap.Error(err))
		s.errorResponse(w, "failed to confirm subscription", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, sub)
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.newsletterService.Unsubscribe(r.Context(), req.Email); err != nil {
		if errors.Is(err, newsletter.ErrNotSubscribed) {
			s.errorResponse(w, "email is not subscribed", http.StatusNotFound)
			return
		}
		s.logger.Error("unsubscribe error", zap.Error(err))
		s.errorResponse(w, "failed to unsubscribe", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]bool{"success": true})
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
