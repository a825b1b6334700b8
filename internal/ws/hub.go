package ws

import (
	"sync"

	"case-monitoring/internal/platform/logger"
)

// Conn es lo mínimo que el hub necesita de un cliente conectado.
// *websocket.Conn de gorilla lo satisface; los tests usan fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// client serializa las escrituras sobre una conexión. Gorilla admite un
// solo writer concurrente y acá escriben dos goroutines distintas: el
// handler (ack, pong, check_complete) y el hub (broadcast desde el
// runner). Todas las escrituras pasan por este wrapper.
type client struct {
	mu   sync.Mutex
	conn Conn
}

func newClient(conn Conn) *client {
	return &client{conn: conn}
}

func (c *client) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) Close() error {
	return c.conn.Close()
}

// Hub mantiene el set de dashboards conectados y hace el broadcast de
// avisos. Es por-proceso y se pierde en un restart: los clientes que
// reconectan no reciben replay, solo el ack de conexión y lo que venga.
type Hub struct {
	mu      sync.Mutex
	clients map[Conn]struct{}
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop{}
	}
	return &Hub{
		clients: make(map[Conn]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(c Conn) {
	if c == nil {
		return
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("ws client registered", map[string]any{"clients": n})
}

func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("ws client unregistered", map[string]any{"clients": n})
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast manda el payload a todos los conectados. Un send fallido no
// frena a los demás: se aísla, se desregistra al cliente roto y se sigue.
func (h *Hub) Broadcast(payload any) {
	h.mu.Lock()
	targets := make([]Conn, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	var failed []Conn
	for _, c := range targets {
		if err := c.WriteJSON(payload); err != nil {
			h.log.Warn("ws send failed, dropping client", map[string]any{"error": err.Error()})
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		h.Unregister(c)
		_ = c.Close()
	}
}
