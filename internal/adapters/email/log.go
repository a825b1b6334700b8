package email

import (
	"context"

	"case-monitoring/internal/platform/logger"
)

// LogMailer solo loguea el envío; se usa en dev cuando no hay SMTP
// configurado, para que el pipeline de fan-out siga siendo observable.
type LogMailer struct {
	log logger.Logger
}

func NewLogMailer(log logger.Logger) *LogMailer {
	if log == nil {
		log = logger.Nop{}
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	m.log.Info("email (log only)", map[string]any{
		"to":      to,
		"subject": subject,
		"bytes":   len(htmlBody),
	})
	return nil
}
