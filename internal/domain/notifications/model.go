package notifications

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTypeNewFiling      EventType = "new_filing"
	EventTypeAccessExpiring EventType = "access_expiring"
	EventTypeSystem         EventType = "system"
)

type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelWebsocket Channel = "websocket"
)

// Event es la fila de auditoría del fan-out: una por (grant, documento).
// Inmutable una vez escrita, salvo Notified/NotifiedAt.
type Event struct {
	ID string

	CaseID string
	UserID string

	Type        EventType
	Title       string
	Description string

	// Data lleva el payload estructurado del evento (docket, documento, etc).
	Data json.RawMessage

	EventDate time.Time
	CreatedAt time.Time

	Channel Channel

	// Notified=false queda como fila "unsent"; la barre el retry sweep,
	// nunca se reintenta inline.
	Notified   bool
	NotifiedAt *time.Time
}
