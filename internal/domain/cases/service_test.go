package cases

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	byID     map[string]MonitoredCase
	byDocket map[string]string
}

func newTestRepo() *testRepo {
	return &testRepo{
		byID:     map[string]MonitoredCase{},
		byDocket: map[string]string{},
	}
}

func (r *testRepo) Create(_ context.Context, c MonitoredCase) error {
	r.byID[c.ID] = c
	r.byDocket[c.DocketID] = c.ID
	return nil
}

func (r *testRepo) Update(_ context.Context, c MonitoredCase) error {
	if _, ok := r.byID[c.ID]; !ok {
		return errors.New("not found")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (MonitoredCase, error) {
	c, ok := r.byID[id]
	if !ok {
		return MonitoredCase{}, errors.New("not found")
	}
	return c, nil
}

func (r *testRepo) GetByDocket(_ context.Context, docketID string) (MonitoredCase, error) {
	id, ok := r.byDocket[docketID]
	if !ok {
		return MonitoredCase{}, errors.New("not found")
	}
	return r.byID[id], nil
}

func (r *testRepo) List(_ context.Context) ([]MonitoredCase, error) {
	out := make([]MonitoredCase, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out, nil
}

func TestService_Register_IdempotentByDocket(t *testing.T) {
	svc := NewService(newTestRepo())

	c1, err := svc.Register(context.Background(), RegisterInput{
		DocketID: "docket-1",
		Name:     "Original name",
	})
	if err != nil {
		t.Fatalf("Register #1 error: %v", err)
	}

	c2, err := svc.Register(context.Background(), RegisterInput{
		DocketID: "docket-1",
		Name:     "Updated name",
	})
	if err != nil {
		t.Fatalf("Register #2 error: %v", err)
	}

	if c2.ID != c1.ID {
		t.Fatalf("expected same case for same docket, got %s vs %s", c1.ID, c2.ID)
	}
	if c2.Name != "Updated name" {
		t.Fatalf("expected name updated, got %q", c2.Name)
	}
}

func TestService_Register_RequiresDocket(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.Register(context.Background(), RegisterInput{Name: "No docket"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_ResolveDocket_UnknownIsNotFound(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.ResolveDocket(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_TouchFetched_SetsTimestamp(t *testing.T) {
	svc := NewService(newTestRepo())
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	c, err := svc.Register(context.Background(), RegisterInput{DocketID: "docket-1"})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if err := svc.TouchFetched(context.Background(), c.ID); err != nil {
		t.Fatalf("TouchFetched error: %v", err)
	}

	got, _ := svc.GetByID(context.Background(), c.ID)
	if got.LastFetchedAt == nil || !got.LastFetchedAt.Equal(fixed) {
		t.Fatalf("expected last fetched %v, got %v", fixed, got.LastFetchedAt)
	}
}
