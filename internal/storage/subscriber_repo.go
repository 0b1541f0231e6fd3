package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mekongwire/reader-pulse/internal/models"
)

// PostgresSubscriberRepo implements SubscriberRepo using PostgreSQL.
type PostgresSubscriberRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriberRepo creates a new PostgreSQL-backed subscriber repo.
func NewPostgresSubscriberRepo(pool *pgxpool.Pool) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{pool: pool}
}

// Create stores a new subscriber.
func (r *PostgresSubscriberRepo) Create(ctx context.Context, sub *models.Subscriber) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscribers (id, email, language, status, confirm_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sub.ID, strings.ToLower(sub.Email), sub.Language, sub.Status, sub.ConfirmToken, sub.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	return nil
}

// GetByEmail retrieves a subscriber by email, or nil when absent.
func (r *PostgresSubscriberRepo) GetByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	return r.get(ctx, `
		SELECT id, email, language, status, confirm_token, created_at, confirmed_at
		FROM subscribers WHERE email = $1
	`, strings.ToLower(email))
}

// GetByToken retrieves a subscriber by confirmation token, or nil when absent.
func (r *PostgresSubscriberRepo) GetByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	return r.get(ctx, `
		SELECT id, email, language, status, confirm_token, created_at, confirmed_at
		FROM subscribers WHERE confirm_token = $1
	`, token)
}

func (r *PostgresSubscriberRepo) get(ctx context.Context, query, arg string) (*models.Subscriber, error) {
	var sub models.Subscriber
	var confirmedAt *time.Time

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&sub.ID, &sub.Email, &sub.Language, &sub.Status, &sub.ConfirmToken, &sub.CreatedAt, &confirmedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	sub.ConfirmedAt = confirmedAt
	return &sub, nil
}

// UpdateStatus transitions a subscriber's lifecycle state.
func (r *PostgresSubscriberRepo) UpdateStatus(ctx context.Context, id, status string, confirmedAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscribers SET status = $2, confirmed_at = COALESCE($3, confirmed_at)
		WHERE id = $1
	`, id, status, confirmedAt)

	if err != nil {
		return fmt.Errorf("failed to update subscriber status: %w", err)
	}
	return nil
}

// InMemorySubscriberRepo provides in-memory subscriber storage.
type InMemorySubscriberRepo struct {
	mu      sync.RWMutex
	byID    map[string]*models.Subscriber
	byEmail map[string]string // email -> id
	byToken map[string]string // token -> id
}

// NewInMemorySubscriberRepo creates a new in-memory subscriber repo.
func NewInMemorySubscriberRepo() *InMemorySubscriberRepo {
	return &InMemorySubscriberRepo{
		byID:    make(map[string]*models.Subscriber),
		byEmail: make(map[string]string),
		byToken: make(map[string]string),
	}
}

func (r *InMemorySubscriberRepo) Create(ctx context.Context, sub *models.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := *sub
	s.Email = strings.ToLower(s.Email)
	r.byID[s.ID] = &s
	r.byEmail[s.Email] = s.ID
	if s.ConfirmToken != "" {
		r.byToken[s.ConfirmToken] = s.ID
	}
	return nil
}

func (r *InMemorySubscriberRepo) GetByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	s := *r.byID[id]
	return &s, nil
}

func (r *InMemorySubscriberRepo) GetByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[token]
	if !ok {
		return nil, nil
	}
	s := *r.byID[id]
	return &s, nil
}

func (r *InMemorySubscriberRepo) UpdateStatus(ctx context.Context, id, status string, confirmedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("subscriber %s not found", id)
	}
	sub.Status = status
	if confirmedAt != nil {
		sub.ConfirmedAt = confirmedAt
	}
	return nil
}
