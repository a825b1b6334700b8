package accessgrants

import "context"

type Repository interface {
	Create(ctx context.Context, g Grant) error
	Update(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)
	ListByCase(ctx context.Context, caseID string) ([]Grant, error)
	ListByUser(ctx context.Context, userID string) ([]Grant, error)
	GetActiveGrant(ctx context.Context, userID, caseID string) (Grant, error)

	// ListActive devuelve todos los grants con Status=active.
	// Puede incluir filas vencidas que el sweep todavía no barrió.
	ListActive(ctx context.Context) ([]Grant, error)
}
