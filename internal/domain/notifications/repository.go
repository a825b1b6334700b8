package notifications

import "context"

type Repository interface {
	Create(ctx context.Context, e Event) error
	GetByID(ctx context.Context, id string) (Event, error)
	Update(ctx context.Context, e Event) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Event, error)

	// ListUnsent devuelve filas con Notified=false, más viejas primero.
	ListUnsent(ctx context.Context, limit int) ([]Event, error)
}
