package mail

import (
	"context"

	"go.uber.org/zap"
)

// Email is one outbound message.
type Email struct {
	To             string
	Subject        string
	HTML           string
	IdempotencyKey string
}

// Mailer delivers e-mail through an external provider.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer only logs messages. Used when no provider key is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, email Email) error {
	m.logger.Info("email (log only)",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("idempotency_key", email.IdempotencyKey))
	return nil
}
