package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	memdocket "case-monitoring/internal/adapters/docket/memory"
	"case-monitoring/internal/adapters/directory"
	"case-monitoring/internal/ports/docket"
	"case-monitoring/internal/router"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *memdocket.Poller, *directory.Static) {
	t.Helper()

	poller := memdocket.NewPoller()
	users := directory.NewStatic()

	h, _ := router.NewRouter(router.Options{
		AuthVerifier: nil,
		Poller:       poller,
		Users:        users,
	})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, poller, users
}

func TestHTTP_EndToEnd_MonitoringPipeline(t *testing.T) {
	ts, poller, users := newTestServer(t)

	userID := "user-7"
	users.Set(userID, "seven@firm.example")

	// 1) Alta del caso monitoreado
	caseID := createCase(t, ts.URL, userID, map[string]any{
		"docket_id": "999",
		"court_id":  "cand",
		"name":      "Case 42",
	})

	// 2) El usuario compra acceso con notificaciones
	grantID := createGrant(t, ts.URL, userID, caseID, map[string]any{
		"access_type":   "monthly",
		"duration_days": 30,
	})

	// 3) Lo ve en sus grants
	{
		st, body := doReq(t, ts.URL, "GET", "/me/grants?status=active", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 listing my grants, got %d body=%s", st, string(body))
		}
		if !strings.Contains(string(body), grantID) {
			t.Fatalf("expected grant %s in listing, body=%s", grantID, string(body))
		}
	}

	// 4) check-now sin novedades: success true, cero notificaciones
	{
		st, body := doReq(t, ts.URL, "POST", "/check-now", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 check-now, got %d body=%s", st, string(body))
		}
		assertSuccess(t, body, true)
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/me/notifications", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 notifications, got %d body=%s", st, string(body))
		}
		if n := countJSONArray(t, body); n != 0 {
			t.Fatalf("expected 0 notifications before filings, got %d", n)
		}
	}

	// 5) Aparece un documento en el docket
	poller.Enqueue(docket.Update{
		DocketID: "999",
		Documents: []docket.Document{
			{ID: "doc-1", Description: "Motion to dismiss", DateFiled: time.Now()},
		},
	})
	{
		st, body := doReq(t, ts.URL, "POST", "/check-now", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 check-now, got %d body=%s", st, string(body))
		}
		assertSuccess(t, body, true)
	}

	// 6) La notificación quedó registrada y entregada
	{
		st, body := doReq(t, ts.URL, "GET", "/me/notifications", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 notifications, got %d body=%s", st, string(body))
		}
		var events []struct {
			CaseID   string `json:"case_id"`
			Type     string `json:"event_type"`
			Notified bool   `json:"notified"`
		}
		if err := json.Unmarshal(body, &events); err != nil {
			t.Fatalf("unmarshal notifications: %v body=%s", err, string(body))
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(events))
		}
		if events[0].CaseID != caseID || events[0].Type != "new_filing" || !events[0].Notified {
			t.Fatalf("unexpected event: %+v", events[0])
		}
	}

	// 7) El caso registra el último fetch
	{
		st, body := doReq(t, ts.URL, "GET", "/cases/"+caseID, userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 get case, got %d body=%s", st, string(body))
		}
		var c struct {
			LastFetchedAt *time.Time `json:"last_fetched_at"`
		}
		_ = json.Unmarshal(body, &c)
		if c.LastFetchedAt == nil {
			t.Fatalf("expected last_fetched_at set, body=%s", string(body))
		}
	}

	// 8) Cancelar corta el monitoreo en el próximo check
	{
		st, body := doReq(t, ts.URL, "POST", "/grants/"+grantID+"/cancel", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 cancel, got %d body=%s", st, string(body))
		}
	}
	poller.Enqueue(docket.Update{
		DocketID: "999",
		Documents: []docket.Document{
			{ID: "doc-2", Description: "Order", DateFiled: time.Now()},
		},
	})
	{
		st, body := doReq(t, ts.URL, "POST", "/check-now", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 check-now, got %d body=%s", st, string(body))
		}
	}
	{
		_, body := doReq(t, ts.URL, "GET", "/me/notifications", userID, nil)
		if n := countJSONArray(t, body); n != 1 {
			t.Fatalf("expected still 1 notification after cancel, got %d body=%s", n, string(body))
		}
	}
}

func TestHTTP_StatusAndPollInterval(t *testing.T) {
	ts, _, _ := newTestServer(t)

	// status inicial: scheduler parado, intervalo en el mínimo
	{
		st, body := doReq(t, ts.URL, "GET", "/status", "user-1", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 status, got %d body=%s", st, string(body))
		}
		var resp struct {
			Running          bool `json:"running"`
			PollInterval     int  `json:"poll_interval"`
			ConnectedClients int  `json:"connected_clients"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal status: %v", err)
		}
		if resp.Running {
			t.Fatalf("expected runner stopped")
		}
		if resp.PollInterval != 60 {
			t.Fatalf("expected default interval 60s, got %d", resp.PollInterval)
		}
		if resp.ConnectedClients != 0 {
			t.Fatalf("expected 0 clients, got %d", resp.ConnectedClients)
		}
	}

	// pedir 5s: se aplica el piso de 60
	{
		st, body := doReq(t, ts.URL, "POST", "/poll-interval", "user-1", map[string]any{"seconds": 5})
		if st != http.StatusOK {
			t.Fatalf("expected 200 poll-interval, got %d body=%s", st, string(body))
		}
		var resp struct {
			Success      bool `json:"success"`
			PollInterval int  `json:"poll_interval"`
		}
		_ = json.Unmarshal(body, &resp)
		if !resp.Success || resp.PollInterval != 60 {
			t.Fatalf("expected clamped 60s, got %+v", resp)
		}
	}

	// 300s se respeta
	{
		_, body := doReq(t, ts.URL, "POST", "/poll-interval", "user-1", map[string]any{"seconds": 300})
		var resp struct {
			PollInterval int `json:"poll_interval"`
		}
		_ = json.Unmarshal(body, &resp)
		if resp.PollInterval != 300 {
			t.Fatalf("expected 300s applied, got %d", resp.PollInterval)
		}
	}
}

func TestHTTP_RequiresIdentity(t *testing.T) {
	ts, _, _ := newTestServer(t)

	st, _ := doReq(t, ts.URL, "POST", "/cases", "", map[string]any{"docket_id": "1"})
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", st)
	}

	st, _ = doReq(t, ts.URL, "GET", "/me/grants", "", nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", st)
	}
}

func TestHTTP_GrantOnUnknownCaseIs404(t *testing.T) {
	ts, _, _ := newTestServer(t)

	st, _ := doReq(t, ts.URL, "POST", "/cases/nope/grants", "user-1", map[string]any{
		"access_type": "one_time",
	})
	if st != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown case, got %d", st)
	}
}

func TestWS_ConnectPingCheckNow(t *testing.T) {
	ts, _, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	var ack struct {
		Type         string `json:"type"`
		PollInterval int    `json:"poll_interval"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != "connection_established" || ack.PollInterval != 60 {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != "pong" {
		t.Fatalf("expected pong, got %q", pong.Type)
	}

	if err := conn.WriteJSON(map[string]string{"type": "check_now"}); err != nil {
		t.Fatalf("write check_now: %v", err)
	}
	var done struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&done); err != nil {
		t.Fatalf("read check_complete: %v", err)
	}
	if done.Type != "check_complete" {
		t.Fatalf("expected check_complete, got %q", done.Type)
	}
}

func createCase(t *testing.T, baseURL, userID string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/cases", userID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create case, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("create case: missing id body=%s", string(body))
	}
	return resp.ID
}

func createGrant(t *testing.T, baseURL, userID, caseID string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/cases/"+caseID+"/grants", userID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create grant, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("create grant: missing id body=%s", string(body))
	}
	return resp.ID
}

func assertSuccess(t *testing.T, body []byte, want bool) {
	t.Helper()

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal success body: %v body=%s", err, string(body))
	}
	if resp.Success != want {
		t.Fatalf("expected success=%v, got %+v", want, resp)
	}
}

func countJSONArray(t *testing.T, body []byte) int {
	t.Helper()

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("expected JSON array, got %s", string(body))
	}
	return len(items)
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
