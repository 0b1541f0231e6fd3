package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mekongwire/reader-pulse/internal/config"
)

// Mailer delivers transactional mail through the external email
// collaborator. Delivery itself is owned by that service; this client
// only submits send requests.
type Mailer struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewMailer creates a mailer client from config.
func NewMailer(cfg config.NewsletterConfig) *Mailer {
	return &Mailer{
		endpoint: cfg.MailerEndpoint,
		apiKey:   cfg.MailerAPIKey,
		from:     cfg.FromAddress,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendConfirmation submits a double-opt-in confirmation mail.
func (m *Mailer) SendConfirmation(ctx context.Context, to, language, confirmURL string) error {
	if m.endpoint == "" {
		return fmt.Errorf("mailer endpoint not configured")
	}

	payload := sendRequest{
		From:    m.from,
		To:      to,
		Subject: confirmSubject(language),
		Body:    fmt.Sprintf("%s\n\n%s", confirmBody(language), confirmURL),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mailer returned status %d", resp.StatusCode)
	}
	return nil
}

func confirmSubject(language string) string {
	switch language {
	case "vi":
		return "Xác nhận đăng ký nhận bản tin"
	case "ko":
		return "뉴스레터 구독을 확인해 주세요"
	case "zh":
		return "请确认订阅新闻简报"
	default:
		return "Confirm your newsletter subscription"
	}
}

func confirmBody(language string) string {
	switch language {
	case "vi":
		return "Nhấn vào liên kết dưới đây để xác nhận đăng ký:"
	case "ko":
		return "아래 링크를 눌러 구독을 확인하세요:"
	case "zh":
		return "点击下方链接确认订阅:"
	default:
		return "Click the link below to confirm your subscription:"
	}
}
