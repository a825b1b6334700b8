package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

const defaultListLimit = 100

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

type RecordInput struct {
	CaseID string
	UserID string

	Type        EventType
	Title       string
	Description string
	Data        any

	EventDate time.Time
	Channel   Channel
}

// Record escribe la fila de auditoría ANTES de intentar la entrega.
// Nace con Notified=false; quien entrega llama MarkNotified si le fue bien.
func (s *Service) Record(ctx context.Context, in RecordInput) (Event, error) {
	caseID := strings.TrimSpace(in.CaseID)
	userID := strings.TrimSpace(in.UserID)

	if caseID == "" || userID == "" || in.Type == "" {
		return Event{}, ErrInvalidInput
	}

	var raw json.RawMessage
	if in.Data != nil {
		b, err := json.Marshal(in.Data)
		if err != nil {
			return Event{}, ErrInvalidInput
		}
		raw = b
	}

	now := s.now()

	eventDate := in.EventDate
	if eventDate.IsZero() {
		eventDate = now
	}
	channel := in.Channel
	if channel == "" {
		channel = ChannelEmail
	}

	e := Event{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		UserID:      userID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Data:        raw,
		EventDate:   eventDate,
		CreatedAt:   now,
		Channel:     channel,
		Notified:    false,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// MarkNotified es la única mutación permitida sobre un evento ya escrito.
func (s *Service) MarkNotified(ctx context.Context, id string) (Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, ErrInvalidInput
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Event{}, ErrNotFound
	}
	if e.Notified {
		return e, nil
	}

	now := s.now()
	e.Notified = true
	e.NotifiedAt = &now

	if err := s.repo.Update(ctx, e); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// ListUnsent alimenta el retry sweep: filas que quedaron sin entregar
// (mail caído, crash a mitad del loop, etc).
func (s *Service) ListUnsent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListUnsent(ctx, limit)
}
