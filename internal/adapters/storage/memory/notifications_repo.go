package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"case-monitoring/internal/domain/notifications"
)

type notificationsRepo struct {
	mu   sync.RWMutex
	byID map[string]notifications.Event
}

func NewNotificationsRepo() notifications.Repository {
	return &notificationsRepo{
		byID: make(map[string]notifications.Event),
	}
}

func (r *notificationsRepo) Create(ctx context.Context, e notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return errors.New("event id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return errors.New("event already exists")
	}
	r.byID[e.ID] = e
	return nil
}

func (r *notificationsRepo) GetByID(ctx context.Context, id string) (notifications.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return notifications.Event{}, ErrNotFound
	}
	return e, nil
}

func (r *notificationsRepo) Update(ctx context.Context, e notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return errors.New("event id required")
	}
	if _, exists := r.byID[e.ID]; !exists {
		return ErrNotFound
	}
	r.byID[e.ID] = e
	return nil
}

func (r *notificationsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]notifications.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notifications.Event, 0)
	for _, e := range r.byID {
		if e.UserID == userID {
			out = append(out, e)
		}
	}

	// más nuevas primero
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationsRepo) ListUnsent(ctx context.Context, limit int) ([]notifications.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notifications.Event, 0)
	for _, e := range r.byID {
		if !e.Notified {
			out = append(out, e)
		}
	}

	// más viejas primero: el retry sweep drena en orden de llegada
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
