package newsletter

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/mekongwire/reader-pulse/internal/metrics"
	"github.com/mekongwire/reader-pulse/internal/models"
	"github.com/mekongwire/reader-pulse/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrInvalidEmail rejects syntactically invalid addresses.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrCaptchaFailed rejects submissions that fail bot verification.
	ErrCaptchaFailed = errors.New("captcha verification failed")
	// ErrTokenNotFound rejects unknown confirmation tokens.
	ErrTokenNotFound = errors.New("confirmation token not found")
	// ErrNotSubscribed rejects unsubscribes for unknown addresses.
	ErrNotSubscribed = errors.New("email is not subscribed")
)

// Captcha abstracts the bot-verification collaborator.
type Captcha interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// ConfirmationMailer abstracts the outbound email collaborator.
type ConfirmationMailer interface {
	SendConfirmation(ctx context.Context, to, language, confirmURL string) error
}

// Service manages the newsletter subscriber lifecycle:
// pending -> confirmed -> unsubscribed.
type Service struct {
	repo           storage.SubscriberRepo
	mailer         ConfirmationMailer
	captcha        Captcha
	logger         *zap.Logger
	metrics        *metrics.Metrics
	confirmBaseURL string
}

// NewService constructs a newsletter service. mailer and captcha may be
// nil when the respective collaborator is disabled.
func NewService(repo storage.SubscriberRepo, mailer ConfirmationMailer, captcha Captcha, confirmBaseURL string, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:           repo,
		mailer:         mailer,
		captcha:        captcha,
		logger:         logger,
		metrics:        m,
		confirmBaseURL: confirmBaseURL,
	}
}

// Subscribe registers a pending subscriber and dispatches the
// confirmation mail. Captcha failure is fatal; mail dispatch failure is
// logged only, so the signup is not lost when the mailer is down.
// Subscribing an already-known address is idempotent.
func (s *Service) Subscribe(ctx context.Context, email, language, captchaToken, remoteIP string) (*models.Subscriber, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, captchaToken, remoteIP); err != nil {
			s.logger.Warn("captcha rejected subscription",
				zap.String("remote_addr", remoteIP),
				zap.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordSubscription("captcha_rejected")
			}
			return nil, ErrCaptchaFailed
		}
	}

	existing, err := s.repo.GetByEmail(ctx, addr.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to look up subscriber: %w", err)
	}
	if existing != nil && existing.Status != models.SubscriberUnsubscribed {
		return existing, nil
	}
	if existing != nil {
		// Re-subscribe after an unsubscribe: back to pending.
		if err := s.repo.UpdateStatus(ctx, existing.ID, models.SubscriberPending, nil); err != nil {
			return nil, fmt.Errorf("failed to reactivate subscriber: %w", err)
		}
		existing.Status = models.SubscriberPending
		s.sendConfirmation(ctx, existing)
		return existing, nil
	}

	if language == "" {
		language = "en"
	}

	sub := &models.Subscriber{
		ID:           uuid.New().String(),
		Email:        addr.Address,
		Language:     language,
		Status:       models.SubscriberPending,
		ConfirmToken: uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSubscription("pending")
	}

	s.sendConfirmation(ctx, sub)

	s.logger.Info("newsletter signup",
		zap.String("subscriber_id", sub.ID),
		zap.String("language", sub.Language),
	)

	return sub, nil
}

func (s *Service) sendConfirmation(ctx context.Context, sub *models.Subscriber) {
	if s.mailer == nil {
		return
	}

	confirmURL := fmt.Sprintf("%s?token=%s", s.confirmBaseURL, sub.ConfirmToken)
	if err := s.mailer.SendConfirmation(ctx, sub.Email, sub.Language, confirmURL); err != nil {
		s.logger.Error("failed to send confirmation mail",
			zap.String("subscriber_id", sub.ID),
			zap.Error(err),
		)
	}
}

// Confirm flips a pending subscriber to confirmed via its token.
// Confirming twice is harmless.
func (s *Service) Confirm(ctx context.Context, token string) (*models.Subscriber, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	sub, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if sub == nil {
		return nil, ErrTokenNotFound
	}

	if sub.Status == models.SubscriberConfirmed {
		return sub, nil
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, sub.ID, models.SubscriberConfirmed, &now); err != nil {
		return nil, fmt.Errorf("failed to confirm subscriber: %w", err)
	}

	sub.Status = models.SubscriberConfirmed
	sub.ConfirmedAt = &now

	if s.metrics != nil {
		s.metrics.RecordSubscription("confirmed")
	}

	return sub, nil
}

// Unsubscribe removes an address from the active list.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	sub, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up subscriber: %w", err)
	}
	if sub == nil {
		return ErrNotSubscribed
	}

	if sub.Status == models.SubscriberUnsubscribed {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, sub.ID, models.SubscriberUnsubscribed, nil); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSubscription("unsubscribed")
	}

	return nil
}
