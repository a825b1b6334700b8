package mailer

import "context"

// Mailer manda un correo con cuerpo HTML y alternativa en texto plano.
// Un error acá nunca es fatal: la fila de notificación queda unsent y
// la levanta el retry sweep.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}
