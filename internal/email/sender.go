package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para los correos del flujo de cuenta.
type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, link string, expiresAt time.Time) error
	SendEmailConfirmation(ctx context.Context, toEmail, link string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSender) SendPasswordReset(_ context.Context, _, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) SendEmailConfirmation(_ context.Context, _, _ string, _ time.Time) error {
	return s.err()
}
