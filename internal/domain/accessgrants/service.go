package accessgrants

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
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

type GrantInput struct {
	UserID string
	CaseID string
	Type   AccessType

	// ExpiresAt nil = sin vencimiento (owner/admin).
	ExpiresAt *time.Time

	// Notifications nil = default true.
	Notifications *bool
}

// Grant crea o extiende acceso de un usuario a un caso.
// Invariante: a lo sumo un grant ACTIVE por (user, case). Si ya existe uno
// activo, se actualiza esa misma fila (extiende vencimiento / cambia tipo)
// en vez de crear una segunda.
func (s *Service) Grant(ctx context.Context, in GrantInput) (Grant, error) {
	userID := strings.TrimSpace(in.UserID)
	caseID := strings.TrimSpace(in.CaseID)

	if userID == "" || caseID == "" {
		return Grant{}, ErrInvalidInput
	}

	typ, err := normalizeType(in.Type)
	if err != nil {
		return Grant{}, err
	}

	if in.ExpiresAt != nil && in.ExpiresAt.IsZero() {
		return Grant{}, ErrInvalidInput
	}

	notif := true
	if in.Notifications != nil {
		notif = *in.Notifications
	}

	now := s.now()

	// 1) Buscar matches activos para (user, case). Si hay más de uno
	// (data sucia), el más reciente gana y los demás se cancelan.
	winner, matches, err := s.findActiveMatch(ctx, userID, caseID)
	if err == nil && winner.ID != "" {
		_ = s.cancelOtherMatches(ctx, winner.ID, matches, now)

		winner.Type = typ
		winner.ExpiresAt = in.ExpiresAt
		winner.NotificationsEnabled = notif
		winner.UpdatedAt = now

		if err := s.repo.Update(ctx, winner); err != nil {
			return Grant{}, err
		}
		return winner, nil
	}

	g := Grant{
		ID:                   uuid.NewString(),
		UserID:               userID,
		CaseID:               caseID,
		Type:                 typ,
		Status:               StatusActive,
		NotificationsEnabled: notif,
		GrantedAt:            now,
		UpdatedAt:            now,
		ExpiresAt:            in.ExpiresAt,
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Cancel es idempotente: cancelar un grant ya cancelado devuelve la fila tal cual.
func (s *Service) Cancel(ctx context.Context, grantID, userID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	userID = strings.TrimSpace(userID)

	if grantID == "" || userID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.UserID != userID {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusCancelled {
		return g, nil
	}
	if g.Status == StatusExpired {
		return Grant{}, ErrBadState
	}

	g.Status = StatusCancelled
	g.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// SetNotifications prende/apaga el fan-out de avisos para un grant propio.
func (s *Service) SetNotifications(ctx context.Context, grantID, userID string, enabled bool) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	userID = strings.TrimSpace(userID)

	if grantID == "" || userID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.UserID != userID {
		return Grant{}, ErrForbidden
	}
	if g.Status != StatusActive {
		return Grant{}, ErrBadState
	}

	if g.NotificationsEnabled == enabled {
		return g, nil
	}

	g.NotificationsEnabled = enabled
	g.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// ExpireDue es el sweep de vencimientos: pasa a EXPIRED todo grant ACTIVE
// con ExpiresAt en el pasado y devuelve cuántos barrió. Corre en intervalo
// fijo; entre el vencimiento real y la corrida hay una ventana de staleness
// aceptada (ver IsActive).
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	count := 0

	for _, g := range items {
		if g.ExpiresAt == nil || g.ExpiresAt.After(now) {
			continue
		}
		g.Status = StatusExpired
		g.UpdatedAt = now

		if err := s.repo.Update(ctx, g); err != nil {
			// seguimos con el resto; el próximo sweep la agarra
			continue
		}
		count++
	}

	return count, nil
}

// Expire barre un grant puntual (lo usa el reconciler cuando detecta una
// fila vencida antes de que corra el sweep general).
func (s *Service) Expire(ctx context.Context, grantID string) error {
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return ErrNotFound
	}
	if g.Status != StatusActive {
		return nil
	}

	g.Status = StatusExpired
	g.UpdatedAt = s.now()
	return s.repo.Update(ctx, g)
}

func (s *Service) ListByCase(ctx context.Context, caseID string) ([]Grant, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByCase(ctx, caseID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Grant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) GetActive(ctx context.Context, userID, caseID string) (Grant, error) {
	userID = strings.TrimSpace(userID)
	caseID = strings.TrimSpace(caseID)

	if userID == "" || caseID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetActiveGrant(ctx, userID, caseID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

// ListMonitorable devuelve los grants ACTIVE con avisos prendidos: la base
// del set de monitoreo del reconciler.
func (s *Service) ListMonitorable(ctx context.Context) ([]Grant, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Grant, 0, len(items))
	for _, g := range items {
		if !g.NotificationsEnabled {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// FanOutForCase devuelve los grants que reciben aviso por una novedad del caso.
// Filtra por Status=active + notifications, NO por IsActive: una fila vencida
// que el sweep todavía no barrió sí recibe aviso (ventana aceptada).
func (s *Service) FanOutForCase(ctx context.Context, caseID string) ([]Grant, error) {
	items, err := s.repo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	out := make([]Grant, 0, len(items))
	for _, g := range items {
		if g.Status != StatusActive || !g.NotificationsEnabled {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Service) findActiveMatch(ctx context.Context, userID, caseID string) (Grant, []Grant, error) {
	items, err := s.repo.ListByCase(ctx, caseID)
	if err != nil {
		return Grant{}, nil, err
	}

	matches := make([]Grant, 0)
	var winner Grant
	hasWinner := false

	for _, g := range items {
		if g.UserID != userID || g.Status != StatusActive {
			continue
		}
		matches = append(matches, g)

		if !hasWinner || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			hasWinner = true
		}
	}

	if !hasWinner {
		return Grant{}, matches, ErrNotFound
	}
	return winner, matches, nil
}

func (s *Service) cancelOtherMatches(ctx context.Context, winnerID string, matches []Grant, now time.Time) error {
	for _, g := range matches {
		if g.ID == "" || g.ID == winnerID {
			continue
		}
		if g.Status != StatusActive {
			continue
		}
		g.Status = StatusCancelled
		g.UpdatedAt = now
		_ = s.repo.Update(ctx, g) // best-effort
	}
	return nil
}

func normalizeType(t AccessType) (AccessType, error) {
	allowed := map[AccessType]struct{}{
		TypeAdmin:        {},
		TypeSubscription: {},
		TypeOneTime:      {},
		TypeMonthly:      {},
		TypeOwner:        {},
	}

	n := AccessType(strings.TrimSpace(string(t)))
	if n == "" {
		return TypeOneTime, nil
	}
	if _, ok := allowed[n]; !ok {
		return "", ErrInvalidInput
	}
	return n, nil
}
