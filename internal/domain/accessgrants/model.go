package accessgrants

import "time"

type AccessType string

const (
	TypeAdmin        AccessType = "admin"
	TypeSubscription AccessType = "subscription"
	TypeOneTime      AccessType = "one_time"
	TypeMonthly      AccessType = "monthly"
	TypeOwner        AccessType = "owner"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

type Grant struct {
	ID string

	UserID string
	CaseID string

	Type   AccessType
	Status Status

	// NotificationsEnabled controla si el grant participa en el fan-out
	// de avisos (email + websocket). No afecta el acceso en sí.
	NotificationsEnabled bool

	GrantedAt time.Time
	UpdatedAt time.Time

	// ExpiresAt nil = acceso sin vencimiento.
	ExpiresAt *time.Time
}

// IsActive evalúa vigencia real, independiente del sweep.
// Un grant vencido mantiene Status=active hasta que el sweep lo barre,
// así que los lectores no deben mirar Status solo.
func (g Grant) IsActive(now time.Time) bool {
	if g.Status != StatusActive {
		return false
	}
	if g.ExpiresAt == nil {
		return true
	}
	return g.ExpiresAt.After(now)
}
