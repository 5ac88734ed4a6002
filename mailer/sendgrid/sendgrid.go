// Package sendgrid delivers transactional auth email through the
// SendGrid dynamic template API.
package sendgrid

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Config holds the SendGrid credentials and template bindings.
type Config struct {
	APIKey                  string
	FromEmail               string
	FromName                string
	ResetPasswordTemplateID string
}

// Mailer sends password reset email. It implements auth.Mailer.
type Mailer struct {
	client *sendgrid.Client
	cfg    Config
}

// New creates a Mailer from the given config.
func New(cfg Config) (*Mailer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid: missing API key")
	}

	if cfg.ResetPasswordTemplateID == "" {
		return nil, fmt.Errorf("sendgrid: missing reset password template id")
	}

	if cfg.FromEmail == "" {
		cfg.FromEmail = "info@ukcheckpoints.info"
	}

	if cfg.FromName == "" {
		cfg.FromName = "noreply"
	}

	return &Mailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		cfg:    cfg,
	}, nil
}

// SendPasswordReset delivers the reset link using the dynamic template.
// Delivery failures surface to the caller.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, resetLink string) error {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(m.cfg.FromName, m.cfg.FromEmail))
	message.SetTemplateID(m.cfg.ResetPasswordTemplateID)

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", email))
	p.SetDynamicTemplateData("reset_password_link", resetLink)
	message.AddPersonalizations(p)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: send reset email: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: send reset email: status %d: %s", resp.StatusCode, resp.Body)
	}

	return nil
}
