package user

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

// Mailer delivers verification codes to users.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string) error
}

// SMTPMailer sends verification codes over plain SMTP.
type SMTPMailer struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func (m *SMTPMailer) SendVerificationCode(_ context.Context, to, code string) error {
	body := fmt.Sprintf(
		"From: Campus Marketplace <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: Marketplace Verification Code\r\n"+
			"\r\n"+
			"Your verification code is: %s\r\n"+
			"This code will expire in 15 minutes.\r\n",
		m.From, to, code,
	)

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}

	addr := m.Host + ":" + m.Port
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, []byte(body)); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending mail. Used in
// development when no SMTP host is configured.
type LogMailer struct {
	Log zerolog.Logger
}

func (m *LogMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.Log.Info().Str("email", to).Str("code", code).Msg("verification code (mail disabled)")
	return nil
}
