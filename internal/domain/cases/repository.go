package cases

import "context"

type Repository interface {
	Create(ctx context.Context, c MonitoredCase) error
	Update(ctx context.Context, c MonitoredCase) error
	GetByID(ctx context.Context, id string) (MonitoredCase, error)
	GetByDocket(ctx context.Context, docketID string) (MonitoredCase, error)
	List(ctx context.Context) ([]MonitoredCase, error)
}
