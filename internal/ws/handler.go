package ws

import (
	"context"
	"net/http"
	"time"

	"case-monitoring/internal/platform/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Checker dispara una pasada de detección de novedades (la implementa el
// bridge del monitor).
type Checker interface {
	CheckNow(ctx context.Context) error
}

// Handler atiende el endpoint de dashboards en vivo.
// Protocolo: al conectar manda connection_established con el poll interval;
// después responde ping->pong y check_now->check_complete. Los avisos de
// novedades llegan por broadcast del hub.
type Handler struct {
	hub     *Hub
	checker Checker
	// interval se consulta por conexión; el runner lo puede cambiar en
	// caliente.
	interval func() time.Duration
	log      logger.Logger
}

func NewHandler(hub *Hub, checker Checker, interval func() time.Duration, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop{}
	}
	return &Handler{
		hub:      hub,
		checker:  checker,
		interval: interval,
		log:      log,
	}
}

type clientMessage struct {
	Type string `json:"type"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	// El wrapper serializa las escrituras: el broadcast del hub y las
	// respuestas de este loop salen por la misma conexión desde
	// goroutines distintas.
	cl := newClient(conn)

	h.hub.Register(cl)
	defer func() {
		// Un disconnect desregistra enseguida; sin replay al volver.
		h.hub.Unregister(cl)
		_ = cl.Close()
	}()

	ack := map[string]any{
		"type":          "connection_established",
		"poll_interval": int(h.interval().Seconds()),
	}
	if err := cl.WriteJSON(ack); err != nil {
		return
	}

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "ping":
			if err := cl.WriteJSON(map[string]any{"type": "pong"}); err != nil {
				return
			}
		case "check_now":
			if err := h.checker.CheckNow(r.Context()); err != nil {
				h.log.Warn("check_now failed", map[string]any{"error": err.Error()})
			}
			if err := cl.WriteJSON(map[string]any{"type": "check_complete"}); err != nil {
				return
			}
		default:
			// mensajes desconocidos se ignoran
		}
	}
}
