package cases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type RegisterInput struct {
	DocketID string
	CourtID  string
	Name     string
}

// Register da de alta el mapeo docket -> caso interno. Idempotente por
// docket: si ya existe, devuelve la fila existente (actualizando el nombre
// si vino uno nuevo).
func (s *Service) Register(ctx context.Context, in RegisterInput) (MonitoredCase, error) {
	docketID := strings.TrimSpace(in.DocketID)
	name := strings.TrimSpace(in.Name)

	if docketID == "" {
		return MonitoredCase{}, ErrInvalidInput
	}

	if existing, err := s.repo.GetByDocket(ctx, docketID); err == nil && existing.ID != "" {
		if name != "" && name != existing.Name {
			existing.Name = name
			if err := s.repo.Update(ctx, existing); err != nil {
				return MonitoredCase{}, err
			}
		}
		return existing, nil
	}

	c := MonitoredCase{
		ID:        uuid.NewString(),
		DocketID:  docketID,
		CourtID:   strings.TrimSpace(in.CourtID),
		Name:      name,
		CreatedAt: s.now(),
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return MonitoredCase{}, err
	}
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (MonitoredCase, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return MonitoredCase{}, ErrInvalidInput
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return MonitoredCase{}, ErrNotFound
	}
	return c, nil
}

// ResolveDocket mapea un docket externo al caso interno.
// Si no existe es un problema de integridad de datos del lado del caller
// (warning + skip, nunca fatal).
func (s *Service) ResolveDocket(ctx context.Context, docketID string) (MonitoredCase, error) {
	docketID = strings.TrimSpace(docketID)
	if docketID == "" {
		return MonitoredCase{}, ErrInvalidInput
	}
	c, err := s.repo.GetByDocket(ctx, docketID)
	if err != nil {
		return MonitoredCase{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]MonitoredCase, error) {
	return s.repo.List(ctx)
}

// Exists lo consumen otros módulos vía interfaz local (rompe ciclos).
func (s *Service) Exists(ctx context.Context, caseID string) (bool, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return false, nil
	}
	_, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// TouchFetched marca cuándo el poller trajo documentos por última vez.
func (s *Service) TouchFetched(ctx context.Context, caseID string) error {
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return ErrNotFound
	}
	now := s.now()
	c.LastFetchedAt = &now
	return s.repo.Update(ctx, c)
}
