package mailer

import (
	"ecom-server/internal/account"
	"ecom-server/internal/observability"
)

// Discard logs mail instead of sending it, for environments without
// SMTP credentials.
type Discard struct {
	Logger *observability.Logger
}

func (d *Discard) SendVerification(email, name string, role account.Role, token, userID string) error {
	d.Logger.Info("mail_discarded", map[string]any{"kind": "verification", "to": email, "user_id": userID})
	return nil
}

func (d *Discard) SendPasswordReset(email, name, token string) error {
	d.Logger.Info("mail_discarded", map[string]any{"kind": "password_reset", "to": email})
	return nil
}

func (d *Discard) SendWelcome(email, name string, role account.Role) error {
	d.Logger.Info("mail_discarded", map[string]any{"kind": "welcome", "to": email})
	return nil
}
