package services

import (
	"authgate/internal/config"
	"context"
	"fmt"
	"net/smtp"
)

type EmailService struct {
	auth smtp.Auth
	from string
	host string
	port string
}

func NewEmailService(cfg *config.Config) *EmailService {
	auth := smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	return &EmailService{
		auth: auth,
		from: cfg.SMTPUser,
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
	}
}

// Send отправляет письмо с текстовой и HTML-версией (multipart/alternative).
func (s *EmailService) Send(to, subject, text, html string) error {
	const boundary = "=_authgate_alt"
	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n" +
		"\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" +
		text + "\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/html; charset=\"utf-8\"\r\n\r\n" +
		html + "\r\n" +
		"--" + boundary + "--\r\n")

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, s.auth, s.from, []string{to}, msg)
}

func (s *EmailService) SendPasswordReset(_ context.Context, to, username, resetLink string) error {
	subject := "Reset your password"
	text := fmt.Sprintf("Reset your password: %s", resetLink)
	html := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Click the link below to reset your password. This link expires in 1 hour.</p>
		<p><a href="%s">Reset password</a></p>
		<p>If you did not request this, ignore this email.</p>`,
		username, resetLink)
	return s.Send(to, subject, text, html)
}

func (s *EmailService) SendPasswordChanged(_ context.Context, to, username string) error {
	subject := "Your password was changed"
	text := fmt.Sprintf("Hi %s, your password has been changed successfully. If you did not do this, contact support.", username)
	html := fmt.Sprintf("<p>%s</p>", text)
	return s.Send(to, subject, text, html)
}
