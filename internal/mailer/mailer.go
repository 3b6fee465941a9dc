// mailer отвечает за доставку писем сброса пароля.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	gomail "github.com/wneessen/go-mail"

	"github.com/pribylovaa/go-online-store/internal/config"
	"github.com/pribylovaa/go-online-store/pkg/redact"
)

// Mailer — контракт отправки письма со ссылкой на сброс пароля.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetToken string) error
}

// SMTPMailer отправляет письма через SMTP (wneessen/go-mail).
type SMTPMailer struct {
	cfg    config.SMTPConfig
	client *gomail.Client
}

// NewSMTP создаёт SMTP-клиент по конфигурации.
func NewSMTP(cfg config.SMTPConfig) (*SMTPMailer, error) {
	const op = "mailer/NewSMTP"

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SMTPMailer{cfg: cfg, client: client}, nil
}

// SendPasswordReset отправляет письмо со ссылкой вида <reset_url>?token=<...>.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email, resetToken string) error {
	const op = "mailer/SendPasswordReset"

	link := m.cfg.ResetURL + "?token=" + url.QueryEscape(resetToken)

	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg.Subject("Reset password")
	msg.SetBodyString(gomail.TypeTextPlain,
		"To reset your password, follow the link: "+link+"\n\n"+
			"If you did not request a password reset, ignore this email.")

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// NopMailer — заглушка для local-окружения без SMTP: пишет факт отправки
// в лог, токен не раскрывает.
type NopMailer struct {
	Log *slog.Logger
}

func (m NopMailer) SendPasswordReset(_ context.Context, email, _ string) error {
	if m.Log != nil {
		m.Log.Info("password_reset_mail_skipped",
			slog.String("email", redact.Email(email)),
			slog.String("token", redact.Token()),
		)
	}

	return nil
}
