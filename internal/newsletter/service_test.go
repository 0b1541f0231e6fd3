package newsletter

import (
	"context"
	"errors"
	"testing"

	"github.com/mekongwire/reader-pulse/internal/models"
	"github.com/mekongwire/reader-pulse/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMailer struct {
	sent []string
	fail bool
}

func (m *fakeMailer) SendConfirmation(ctx context.Context, to, language, confirmURL string) error {
	if m.fail {
		return errors.New("mailer down")
	}
	m.sent = append(m.sent, to)
	return nil
}

type fakeCaptcha struct {
	reject bool
}

func (c *fakeCaptcha) Verify(ctx context.Context, token, remoteIP string) error {
	if c.reject {
		return errors.New("token rejected")
	}
	return nil
}

func newTestService(mailer ConfirmationMailer, captcha Captcha) (*Service, *storage.InMemorySubscriberRepo) {
	repo := storage.NewInMemorySubscriberRepo()
	svc := NewService(repo, mailer, captcha, "http://localhost/newsletter/confirm", nil, zap.NewNop())
	return svc, repo
}

func TestSubscribeLifecycle(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestService(mailer, nil)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "reader@example.com", "vi", "", "")
	require.NoError(t, err)
	require.Equal(t, models.SubscriberPending, sub.Status)
	require.Equal(t, "vi", sub.Language)
	require.NotEmpty(t, sub.ConfirmToken)
	require.Equal(t, []string{"reader@example.com"}, mailer.sent)

	confirmed, err := svc.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)
	require.Equal(t, models.SubscriberConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	require.NoError(t, svc.Unsubscribe(ctx, "reader@example.com"))
}

func TestSubscribeRejectsInvalidEmail(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	_, err := svc.Subscribe(context.Background(), "not-an-email", "", "", "")
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "reader@example.com", "", "", "")
	require.NoError(t, err)

	again, err := svc.Subscribe(ctx, "reader@example.com", "", "", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
}

func TestSubscribeCaptchaRejection(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestService(mailer, &fakeCaptcha{reject: true})

	_, err := svc.Subscribe(context.Background(), "reader@example.com", "", "bad-token", "1.2.3.4")
	require.ErrorIs(t, err, ErrCaptchaFailed)
	require.Empty(t, mailer.sent)
}

func TestSubscribeSurvivesMailerFailure(t *testing.T) {
	svc, repo := newTestService(&fakeMailer{fail: true}, nil)

	sub, err := svc.Subscribe(context.Background(), "reader@example.com", "", "", "")
	require.NoError(t, err, "signup is kept even when the mailer is down")

	stored, err := repo.GetByEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)
	require.Equal(t, sub.ID, stored.ID)
}

func TestResubscribeAfterUnsubscribe(t *testing.T) {
	svc, _ := newTestService(&fakeMailer{}, nil)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "reader@example.com", "", "", "")
	require.NoError(t, err)
	require.NoError(t, svc.Unsubscribe(ctx, "reader@example.com"))

	back, err := svc.Subscribe(ctx, "reader@example.com", "", "", "")
	require.NoError(t, err)
	require.Equal(t, sub.ID, back.ID)
	require.Equal(t, models.SubscriberPending, back.Status)
}

func TestConfirmUnknownToken(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	_, err := svc.Confirm(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTokenNotFound)

	_, err = svc.Confirm(context.Background(), "")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestConfirmTwiceIsHarmless(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "reader@example.com", "", "", "")
	require.NoError(t, err)

	first, err := svc.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)
	again, err := svc.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)
	require.Equal(t, first.Status, again.Status)
}

func TestUnsubscribeUnknownEmail(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	err := svc.Unsubscribe(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, ErrNotSubscribed)
}

func TestUnsubscribeTwiceIsHarmless(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "reader@example.com", "", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, "reader@example.com"))
	require.NoError(t, svc.Unsubscribe(ctx, "reader@example.com"))
}
