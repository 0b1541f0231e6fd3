package engagement

import (
	"context"
	"fmt"
	"sync"

	"github.com/mekongwire/reader-pulse/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HeartStore keeps per-article heart counts.
type HeartStore interface {
	Increment(ctx context.Context, articleID string) (int64, error)
	Get(ctx context.Context, articleID string) (int64, error)
}

// RedisHeartStore keeps heart counts in Redis. Counters survive restarts
// and are shared across instances.
type RedisHeartStore struct {
	client *redis.Client
}

// NewRedisHeartStore creates a Redis-backed heart store.
func NewRedisHeartStore(client *redis.Client) *RedisHeartStore {
	return &RedisHeartStore{client: client}
}

func heartKey(articleID string) string {
	return fmt.Sprintf("hearts:%s", articleID)
}

func (s *RedisHeartStore) Increment(ctx context.Context, articleID string) (int64, error) {
	count, err := s.client.Incr(ctx, heartKey(articleID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment hearts: %w", err)
	}
	return count, nil
}

func (s *RedisHeartStore) Get(ctx context.Context, articleID string) (int64, error) {
	count, err := s.client.Get(ctx, heartKey(articleID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read hearts: %w", err)
	}
	return count, nil
}

// InMemoryHeartStore keeps heart counts in memory.
type InMemoryHeartStore struct {
	mu     sync.RWMutex
	counts map[string]int64
}

// NewInMemoryHeartStore creates an in-memory heart store.
func NewInMemoryHeartStore() *InMemoryHeartStore {
	return &InMemoryHeartStore{counts: make(map[string]int64)}
}

func (s *InMemoryHeartStore) Increment(ctx context.Context, articleID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[articleID]++
	return s.counts[articleID], nil
}

func (s *InMemoryHeartStore) Get(ctx context.Context, articleID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[articleID], nil
}

// Service exposes article heart counters.
type Service struct {
	store   HeartStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService constructs an engagement service.
func NewService(store HeartStore, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{store: store, metrics: m, logger: logger}
}

// HeartCount is the counter payload for one article.
type HeartCount struct {
	ArticleID string `json:"article_id"`
	Hearts    int64  `json:"hearts"`
}

// Heart increments the counter for an article.
func (s *Service) Heart(ctx context.Context, articleID string) (*HeartCount, error) {
	if articleID == "" {
		return nil, fmt.Errorf("article id is required")
	}

	count, err := s.store.Increment(ctx, articleID)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordHeart()
	}

	return &HeartCount{ArticleID: articleID, Hearts: count}, nil
}

// Hearts reads the counter for an article. Unknown articles read 0.
func (s *Service) Hearts(ctx context.Context, articleID string) (*HeartCount, error) {
	if articleID == "" {
		return nil, fmt.Errorf("article id is required")
	}

	count, err := s.store.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}

	return &HeartCount{ArticleID: articleID, Hearts: count}, nil
}
