// Package mailer sends the transactional mail over SMTP with HTML
// bodies rendered from embedded templates.
package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"

	"gopkg.in/gomail.v2"

	"ecom-server/internal/account"
)

//go:embed templates/*.html
var templateFS embed.FS

type Config struct {
	SenderName  string
	SenderEmail string
	Host        string
	Port        int
	Username    string
	Password    string

	// ClientURL hosts the verification page; BaseURL the reset page.
	ClientURL string
	BaseURL   string
}

type Mailer struct {
	cfg       Config
	dialer    *gomail.Dialer
	templates *template.Template
}

func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" || cfg.SenderEmail == "" {
		return nil, fmt.Errorf("incomplete smtp configuration")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}

	return &Mailer{
		cfg:       cfg,
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		templates: templates,
	}, nil
}

func (m *Mailer) SendVerification(email, name string, role account.Role, token, userID string) error {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s&userId=%s",
		m.cfg.ClientURL, url.QueryEscape(token), url.QueryEscape(userID))

	return m.send(email, "Verify your email", "verify.html", map[string]any{
		"Name": name,
		"Role": role,
		"Link": link,
	})
}

func (m *Mailer) SendPasswordReset(email, name, token string) error {
	link := fmt.Sprintf("%s/forget-password?token=%s", m.cfg.BaseURL, url.QueryEscape(token))

	return m.send(email, "Reset your password", "reset.html", map[string]any{
		"Name": name,
		"Link": link,
	})
}

func (m *Mailer) SendWelcome(email, name string, role account.Role) error {
	return m.send(email, "Welcome aboard", "welcome.html", map[string]any{
		"Name":      name,
		"Role":      role,
		"ClientURL": m.cfg.ClientURL,
	})
}

func (m *Mailer) send(to, subject, templateName string, data map[string]any) error {
	var body bytes.Buffer
	if err := m.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("render %s: %w", templateName, err)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.SenderEmail, m.cfg.SenderName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	return nil
}
