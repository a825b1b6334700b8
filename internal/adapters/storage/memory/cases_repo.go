package memory

import (
	"context"
	"errors"
	"sync"

	"case-monitoring/internal/domain/cases"
)

type casesRepo struct {
	mu       sync.RWMutex
	byID     map[string]cases.MonitoredCase
	byDocket map[string]string // docketID -> caseID
}

func NewCasesRepo() cases.Repository {
	return &casesRepo{
		byID:     make(map[string]cases.MonitoredCase),
		byDocket: make(map[string]string),
	}
}

func (r *casesRepo) Create(ctx context.Context, c cases.MonitoredCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" || c.DocketID == "" {
		return errors.New("case id and docket id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("case already exists")
	}
	if _, exists := r.byDocket[c.DocketID]; exists {
		return errors.New("docket already registered")
	}

	r.byID[c.ID] = c
	r.byDocket[c.DocketID] = c.ID
	return nil
}

func (r *casesRepo) Update(ctx context.Context, c cases.MonitoredCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("case id required")
	}
	old, exists := r.byID[c.ID]
	if !exists {
		return ErrNotFound
	}
	if old.DocketID != c.DocketID {
		delete(r.byDocket, old.DocketID)
		r.byDocket[c.DocketID] = c.ID
	}
	r.byID[c.ID] = c
	return nil
}

func (r *casesRepo) GetByID(ctx context.Context, id string) (cases.MonitoredCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return cases.MonitoredCase{}, ErrNotFound
	}
	return c, nil
}

func (r *casesRepo) GetByDocket(ctx context.Context, docketID string) (cases.MonitoredCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byDocket[docketID]
	if !ok {
		return cases.MonitoredCase{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *casesRepo) List(ctx context.Context) ([]cases.MonitoredCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]cases.MonitoredCase, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out, nil
}
