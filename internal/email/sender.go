// Package email delivers rendered outreach messages through the configured
// provider and reports the provider's message id.
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"govcon_outreach_backend/platform/config"
)

// ErrRejected marks a provider response that retrying will not change, such
// as an invalid recipient or a rejected API key.
var ErrRejected = errors.New("email rejected by provider")

// Message is one fully rendered email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
	Tags    []string
	// Headers are extra MIME headers such as List-Unsubscribe.
	Headers map[string]string
}

// Sender delivers a message and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// NoopSender accepts every message without delivering it.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, msg Message) (string, error) {
	return "noop-" + uuid.NewString(), nil
}

// NewSender returns the sender for the configured provider. Disabled email
// yields a NoopSender.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	switch cfg.GetEmailProvider() {
	case "brevo":
		return NewBrevoSender(cfg.GetBrevoAPIKey(), cfg.GetEmailFromName(), cfg.GetEmailFromAddress()), nil
	case "smtp":
		return NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		), nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.GetEmailProvider())
	}
}
