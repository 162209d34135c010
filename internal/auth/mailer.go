package auth

import (
	"context"
	"log/slog"
	"time"

	"signscribe/internal/logging"
)

// Mailer delivers password reset tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string, expires time.Time) error
}

// LogMailer writes reset tokens to the log instead of sending mail.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, token string, expires time.Time) error {
	logging.NewComponentLogger(m.Logger, "mailer").Info("password reset requested",
		logging.String(logging.FieldEventType, "password_reset_token"),
		logging.String("email", email),
		logging.String("token", token),
		logging.String("expires", expires.UTC().Format(time.RFC3339)),
	)
	return nil
}
