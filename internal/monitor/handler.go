package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"case-monitoring/internal/ws"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes monta los endpoints de operación del monitor.
// /check-now y /poll-interval contestan siempre JSON success/error,
// nunca un 5xx: nada acá es fatal para el caller.
func RegisterRoutes(r chi.Router, bridge *Bridge, runner *Runner, hub *ws.Hub) {
	r.Post("/check-now", checkNowHandler(bridge))
	r.Get("/status", statusHandler(runner, hub))
	r.Post("/poll-interval", pollIntervalHandler(runner))
}

func checkNowHandler(bridge *Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := bridge.SyncMonitoring(r.Context()); err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		if err := bridge.CheckNow(r.Context()); err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func statusHandler(runner *Runner, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"running":           runner.Running(),
			"poll_interval":     int(runner.Interval().Seconds()),
			"connected_clients": hub.Count(),
		})
	}
}

type pollIntervalRequest struct {
	Seconds int `json:"seconds"`
}

func pollIntervalHandler(runner *Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pollIntervalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   "invalid json",
			})
			return
		}

		applied := runner.SetInterval(secondsToDuration(req.Seconds))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"poll_interval": int(applied.Seconds()),
		})
	}
}

func secondsToDuration(s int) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s) * time.Second
}

// writeJSON duplicado a propósito (ver nota en accessgrants/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
