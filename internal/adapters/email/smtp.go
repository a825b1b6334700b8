package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("smtp mailer not configured")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer implementa ports/mailer.Mailer sobre SMTP con TLS.
// Un Send fallido se loguea del lado del caller y la fila de notificación
// queda unsent para el retry sweep.
type SMTPMailer struct {
	cfg Config
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) IsConfigured() bool {
	return m != nil && m.cfg.Host != "" && m.cfg.Port > 0 && m.cfg.From != ""
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if !m.IsConfigured() {
		return ErrNotConfigured
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("recipient required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(m.cfg.From, to, subject, htmlBody, textBody)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

// buildMessage arma un multipart/alternative con texto plano + HTML.
func buildMessage(from, to, subject, htmlBody, textBody string) []byte {
	const boundary = "case-monitoring-alt"

	var b bytes.Buffer
	write := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\r\n", args...)
	}

	write("From: %s", from)
	write("To: %s", to)
	write("Subject: %s", subject)
	write("Date: %s", time.Now().Format(time.RFC1123Z))
	write("MIME-Version: 1.0")
	write("Content-Type: multipart/alternative; boundary=%q", boundary)
	write("")

	if strings.TrimSpace(textBody) != "" {
		write("--%s", boundary)
		write("Content-Type: text/plain; charset=UTF-8")
		write("")
		write("%s", textBody)
	}
	if strings.TrimSpace(htmlBody) != "" {
		write("--%s", boundary)
		write("Content-Type: text/html; charset=UTF-8")
		write("")
		write("%s", htmlBody)
	}
	write("--%s--", boundary)

	return b.Bytes()
}
