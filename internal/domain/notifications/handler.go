package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"case-monitoring/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/me/notifications", func(nr chi.Router) {
		nr.Get("/", listMyNotificationsHandler(svc))
	})
}

type eventResponse struct {
	ID          string          `json:"id"`
	CaseID      string          `json:"case_id"`
	Type        EventType       `json:"event_type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	EventDate   time.Time       `json:"event_date"`
	CreatedAt   time.Time       `json:"created_at"`
	Channel     Channel         `json:"channel"`
	Notified    bool            `json:"notified"`
	NotifiedAt  *time.Time      `json:"notified_at,omitempty"`
}

func listMyNotificationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		items, err := svc.ListByUser(r.Context(), claims.UserID, limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]eventResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEventResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toEventResponse(e Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		CaseID:      e.CaseID,
		Type:        e.Type,
		Title:       e.Title,
		Description: e.Description,
		Data:        e.Data,
		EventDate:   e.EventDate,
		CreatedAt:   e.CreatedAt,
		Channel:     e.Channel,
		Notified:    e.Notified,
		NotifiedAt:  e.NotifiedAt,
	}
}

// writeJSON duplicado a propósito (ver nota en accessgrants/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
