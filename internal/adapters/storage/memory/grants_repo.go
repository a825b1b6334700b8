package memory

import (
	"context"
	"errors"
	"sync"

	"case-monitoring/internal/domain/accessgrants"
)

var ErrNotFound = errors.New("not found")

type grantsRepo struct {
	mu   sync.RWMutex
	byID map[string]accessgrants.Grant
}

func NewGrantsRepo() accessgrants.Repository {
	return &grantsRepo{
		byID: make(map[string]accessgrants.Grant),
	}
}

func (r *grantsRepo) Create(ctx context.Context, g accessgrants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *grantsRepo) Update(ctx context.Context, g accessgrants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; !exists {
		return ErrNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *grantsRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byID[id]
	if !ok {
		return accessgrants.Grant{}, ErrNotFound
	}
	return g, nil
}

func (r *grantsRepo) ListByCase(ctx context.Context, caseID string) ([]accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.byID {
		if g.CaseID == caseID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *grantsRepo) ListByUser(ctx context.Context, userID string) ([]accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.byID {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

// Defensivo: si por data sucia hubiera varios grants activos para el par,
// devolvemos el más reciente por UpdatedAt (empate: CreatedAt).
func (r *grantsRepo) GetActiveGrant(ctx context.Context, userID, caseID string) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner accessgrants.Grant
	has := false

	for _, g := range r.byID {
		if g.UserID != userID || g.CaseID != caseID {
			continue
		}
		if g.Status != accessgrants.StatusActive {
			continue
		}

		if !has {
			winner = g
			has = true
			continue
		}
		if g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			continue
		}
		if g.UpdatedAt.Equal(winner.UpdatedAt) && g.GrantedAt.After(winner.GrantedAt) {
			winner = g
		}
	}

	if !has {
		return accessgrants.Grant{}, ErrNotFound
	}
	return winner, nil
}

func (r *grantsRepo) ListActive(ctx context.Context) ([]accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.byID {
		if g.Status == accessgrants.StatusActive {
			out = append(out, g)
		}
	}
	return out, nil
}
