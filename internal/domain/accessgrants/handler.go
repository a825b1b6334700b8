package accessgrants

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"case-monitoring/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// CaseLookup evita importar el paquete cases (rompe ciclos).
type CaseLookup interface {
	Exists(ctx context.Context, caseID string) (bool, error)
}

func RegisterRoutes(r chi.Router, svc *Service, caseLookup CaseLookup) {
	r.Route("/cases/{caseID}/grants", func(gr chi.Router) {
		gr.Post("/", createGrantHandler(svc, caseLookup))
		gr.Get("/", listGrantsByCaseHandler(svc))
	})

	r.Route("/grants/{grantID}", func(gr chi.Router) {
		gr.Post("/cancel", cancelGrantHandler(svc))
		gr.Post("/notifications", setNotificationsHandler(svc))
	})

	r.Route("/me/grants", func(mr chi.Router) {
		mr.Get("/", listMyGrantsHandler(svc))
	})
}

type createGrantRequest struct {
	AccessType string `json:"access_type"`
	// DurationDays 0 = sin vencimiento.
	DurationDays  int   `json:"duration_days"`
	Notifications *bool `json:"notifications_enabled"`
}

type grantResponse struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	CaseID               string     `json:"case_id"`
	AccessType           AccessType `json:"access_type"`
	Status               Status     `json:"status"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
	GrantedAt            time.Time  `json:"granted_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
}

func createGrantHandler(svc *Service, caseLookup CaseLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		caseID := chi.URLParam(r, "caseID")

		exists, err := caseLookup.Exists(r.Context(), caseID)
		if err != nil || !exists {
			http.Error(w, "case not found", http.StatusNotFound)
			return
		}

		var req createGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.DurationDays < 0 {
			http.Error(w, "duration_days must be >= 0", http.StatusBadRequest)
			return
		}

		var expiresAt *time.Time
		if req.DurationDays > 0 {
			t := time.Now().AddDate(0, 0, req.DurationDays)
			expiresAt = &t
		}

		g, err := svc.Grant(r.Context(), GrantInput{
			UserID:        claims.UserID,
			CaseID:        caseID,
			Type:          AccessType(req.AccessType),
			ExpiresAt:     expiresAt,
			Notifications: req.Notifications,
		})
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toGrantResponse(g))
	}
}

func listGrantsByCaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		caseID := chi.URLParam(r, "caseID")

		// Solo admin/owner del caso puede ver el listado completo.
		own, err := svc.GetActive(r.Context(), claims.UserID, caseID)
		if err != nil || (own.Type != TypeAdmin && own.Type != TypeOwner) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListByCase(r.Context(), caseID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]grantResponse, 0, len(items))
		for _, g := range items {
			out = append(out, toGrantResponse(g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listMyGrantsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// status=active,expired (CSV opcional)
		allowed := parseStatusFilter(r.URL.Query().Get("status"))

		items, err := svc.ListByUser(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(allowed) > 0 {
			filtered := make([]Grant, 0, len(items))
			for _, g := range items {
				if _, ok := allowed[g.Status]; ok {
					filtered = append(filtered, g)
				}
			}
			items = filtered
		}

		out := make([]grantResponse, 0, len(items))
		for _, g := range items {
			out = append(out, toGrantResponse(g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func cancelGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.Cancel(r.Context(), grantID, claims.UserID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

type setNotificationsRequest struct {
	Enabled bool `json:"enabled"`
}

func setNotificationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req setNotificationsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.SetNotifications(r.Context(), grantID, claims.UserID, req.Enabled)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func writeGrantError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrForbidden:
		http.Error(w, "forbidden", http.StatusForbidden)
	case ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case ErrBadState:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		ID:                   g.ID,
		UserID:               g.UserID,
		CaseID:               g.CaseID,
		AccessType:           g.Type,
		Status:               g.Status,
		NotificationsEnabled: g.NotificationsEnabled,
		GrantedAt:            g.GrantedAt,
		UpdatedAt:            g.UpdatedAt,
		ExpiresAt:            g.ExpiresAt,
	}
}

func parseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := map[Status]struct{}{}
	for _, p := range parts {
		s := Status(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

// writeJSON está duplicado a propósito en los handlers de cada módulo
// para no crear helpers compartidos antes de tiempo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
