package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ResendMailer sends e-mail through the Resend HTTP API.
type ResendMailer struct {
	baseURL string
	apiKey  string
	from    string
	timeout time.Duration
}

// NewResendMailer builds a Resend client.
func NewResendMailer(baseURL, apiKey, from string) *ResendMailer {
	return &ResendMailer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		timeout: 10 * time.Second,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	if strings.TrimSpace(email.To) == "" {
		return errors.New("mail: recipient required")
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(m.baseURL + "/emails")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+m.apiKey)
	if email.IdempotencyKey != "" {
		agent.Set("Idempotency-Key", email.IdempotencyKey)
	}
	agent.Timeout(timeout)
	agent.JSON(resendRequest{
		From:    m.from,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTML,
	})

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("mail: send to resend: %w", errors.Join(errs...))
	}
	if status >= 200 && status < 300 {
		return nil
	}

	var apiErr resendError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("mail: resend responded %d: %s", status, apiErr.Message)
	}
	return fmt.Errorf("mail: resend responded %d", status)
}
