package directory

import "context"

// UserDirectory resuelve el email de un usuario para el fan-out.
// En dev es un mapa estático; en producción lo respalda el IAM.
type UserDirectory interface {
	Email(ctx context.Context, userID string) (string, error)
}
