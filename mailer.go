package auth

import "context"

// LogMailer writes reset links to the logger instead of sending email.
// Useful in development and tests.
type LogMailer struct {
	Logger Logger
}

// SendPasswordReset implements Mailer.
func (m *LogMailer) SendPasswordReset(_ context.Context, email, resetLink string) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("password reset requested for %s: %s", email, resetLink)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
