package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

const (
	// DefaultResendEndpoint - HTTP API Resend для отправки писем.
	DefaultResendEndpoint = "https://api.resend.com/emails"
	// DefaultFrom - отправитель писем магазина.
	DefaultFrom = "FlashCart <onboarding@resend.dev>"
)

// ErrProviderRejected - почтовый провайдер вернул ошибку.
var ErrProviderRejected = errors.New("email provider rejected request")

// ResendConfig описывает подключение к Resend.
type ResendConfig struct {
	APIKey   string
	Endpoint string
	From     string
	Timeout  time.Duration
}

// ResendSender отправляет письма через HTTP API Resend.
type ResendSender struct {
	cfg    ResendConfig
	client *http.Client
	logger *log.Entry
}

// NewResendSender проверяет конфигурацию и создаёт отправителя.
func NewResendSender(cfg ResendConfig, client *http.Client, logger *log.Entry) (*ResendSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: resend api key is empty", domain.ErrConfiguration)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultResendEndpoint
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = log.WithField("component", "resend-sender")
	}
	return &ResendSender{cfg: cfg, client: client, logger: logger}, nil
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send рендерит письмо и отправляет его провайдеру.
func (s *ResendSender) Send(ctx context.Context, n domain.Notification) error {
	email, err := Render(n)
	if err != nil {
		return err
	}

	body, err := json.Marshal(resendRequest{
		From:    s.cfg.From,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email via resend: %w", err)
	}
	defer resp.Body.Close()

	var result resendResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := result.Message
		if message == "" {
			message = "Failed to send email"
		}
		return fmt.Errorf("%w: status %d: %s", ErrProviderRejected, resp.StatusCode, message)
	}

	s.logger.WithFields(log.Fields{
		"order_id":   n.OrderID,
		"type":       n.Type,
		"message_id": result.ID,
	}).Info("email sent")
	return nil
}

// LogSender только пишет уведомление в лог; используется, когда провайдер не настроен.
type LogSender struct {
	logger *log.Entry
}

// NewLogSender создаёт отправителя-заглушку.
func NewLogSender(logger *log.Entry) *LogSender {
	if logger == nil {
		logger = log.WithField("component", "log-sender")
	}
	return &LogSender{logger: logger}
}

// Send рендерит письмо и логирует его тему.
func (s *LogSender) Send(_ context.Context, n domain.Notification) error {
	email, err := Render(n)
	if err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"order_id": n.OrderID,
		"type":     n.Type,
		"to":       email.To,
		"subject":  email.Subject,
	}).Info("email provider not configured, notification logged")
	return nil
}

var (
	_ domain.NotificationSender = (*ResendSender)(nil)
	_ domain.NotificationSender = (*LogSender)(nil)
)
