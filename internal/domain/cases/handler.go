package cases

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"case-monitoring/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/cases", func(cr chi.Router) {
		cr.Post("/", registerCaseHandler(svc))
		cr.Get("/", listCasesHandler(svc))
		cr.Get("/{caseID}", getCaseHandler(svc))
	})
}

type registerCaseRequest struct {
	DocketID string `json:"docket_id"`
	CourtID  string `json:"court_id"`
	Name     string `json:"name"`
}

type caseResponse struct {
	ID            string     `json:"id"`
	DocketID      string     `json:"docket_id"`
	CourtID       string     `json:"court_id,omitempty"`
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"created_at"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
}

func registerCaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req registerCaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.DocketID) == "" {
			http.Error(w, "docket_id required", http.StatusBadRequest)
			return
		}

		c, err := svc.Register(r.Context(), RegisterInput{
			DocketID: req.DocketID,
			CourtID:  req.CourtID,
			Name:     req.Name,
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

		writeJSON(w, http.StatusCreated, toCaseResponse(c))
	}
}

func listCasesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.List(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]caseResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toCaseResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getCaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		c, err := svc.GetByID(r.Context(), chi.URLParam(r, "caseID"))
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			case ErrNotFound:
				http.Error(w, "not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toCaseResponse(c))
	}
}

func toCaseResponse(c MonitoredCase) caseResponse {
	return caseResponse{
		ID:            c.ID,
		DocketID:      c.DocketID,
		CourtID:       c.CourtID,
		Name:          c.Name,
		CreatedAt:     c.CreatedAt,
		LastFetchedAt: c.LastFetchedAt,
	}
}

// writeJSON duplicado a propósito (ver nota en accessgrants/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
