package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	memdocket "case-monitoring/internal/adapters/docket/memory"
	"case-monitoring/internal/adapters/directory"
	"case-monitoring/internal/adapters/storage/memory"
	"case-monitoring/internal/domain/accessgrants"
	"case-monitoring/internal/domain/cases"
	"case-monitoring/internal/domain/notifications"
	"case-monitoring/internal/ports/docket"
	"case-monitoring/internal/ws"
)

type sentMail struct {
	to      string
	subject string
}

type fakeMailer struct {
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject})
	return nil
}

type fixture struct {
	grants *accessgrants.Service
	cases  *cases.Service
	notes  *notifications.Service
	poller *memdocket.Poller
	mailer *fakeMailer
	users  *directory.Static
	bridge *Bridge
}

func newFixture() *fixture {
	grants := accessgrants.NewService(memory.NewGrantsRepo())
	casesSvc := cases.NewService(memory.NewCasesRepo())
	notes := notifications.NewService(memory.NewNotificationsRepo())
	poller := memdocket.NewPoller()
	mail := &fakeMailer{}
	users := directory.NewStatic()
	hub := ws.NewHub(nil)

	return &fixture{
		grants: grants,
		cases:  casesSvc,
		notes:  notes,
		poller: poller,
		mailer: mail,
		users:  users,
		bridge: NewBridge(grants, casesSvc, notes, poller, mail, users, hub, nil),
	}
}

func (f *fixture) registerCase(t *testing.T, docketID, name string) cases.MonitoredCase {
	t.Helper()
	c, err := f.cases.Register(context.Background(), cases.RegisterInput{
		DocketID: docketID,
		Name:     name,
	})
	if err != nil {
		t.Fatalf("register case: %v", err)
	}
	return c
}

func (f *fixture) grantAccess(t *testing.T, userID, caseID string, expiresAt *time.Time) accessgrants.Grant {
	t.Helper()
	g, err := f.grants.Grant(context.Background(), accessgrants.GrantInput{
		UserID:    userID,
		CaseID:    caseID,
		Type:      accessgrants.TypeMonthly,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("grant access: %v", err)
	}
	return g
}

func TestBridge_SyncMonitoring_IdempotentAcrossRuns(t *testing.T) {
	f := newFixture()

	c := f.registerCase(t, "docket-100", "Smith v. Jones")
	f.grantAccess(t, "user-1", c.ID, nil)

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync #1: %v", err)
	}
	if !f.poller.IsMonitored("docket-100") {
		t.Fatalf("expected docket monitored after sync")
	}

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync #2: %v", err)
	}
	if f.poller.MonitorCalls != 1 {
		t.Fatalf("expected exactly 1 Monitor call, got %d", f.poller.MonitorCalls)
	}
}

func TestBridge_SyncMonitoring_RebuildsSetAfterRestart(t *testing.T) {
	f := newFixture()

	c := f.registerCase(t, "docket-200", "In re Estate")
	f.grantAccess(t, "user-1", c.ID, nil)

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	// "Restart": el set en memoria se pierde, los grants quedan.
	f.poller.Forget("docket-200")

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync after restart: %v", err)
	}
	if !f.poller.IsMonitored("docket-200") {
		t.Fatalf("expected monitoring rebuilt from grants")
	}
}

func TestBridge_SyncMonitoring_ExpiresStaleGrantInPlace(t *testing.T) {
	f := newFixture()

	c := f.registerCase(t, "docket-300", "Doe v. Roe")
	past := time.Now().Add(-time.Hour)
	g := f.grantAccess(t, "user-1", c.ID, &past)

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if f.poller.IsMonitored("docket-300") {
		t.Fatalf("expired grant must not start monitoring")
	}

	list, err := f.grants.ListByUser(context.Background(), "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list grants: %v (%d)", err, len(list))
	}
	if list[0].Status != accessgrants.StatusExpired {
		t.Fatalf("expected grant expired in place, got %s", list[0].Status)
	}
	_ = g
}

func TestBridge_CheckNow_FanOutCountsOnlyActiveGrants(t *testing.T) {
	f := newFixture()

	c := f.registerCase(t, "docket-400", "People v. Example")
	for _, u := range []string{"user-1", "user-2", "user-3"} {
		f.grantAccess(t, u, c.ID, nil)
		f.users.Set(u, u+"@firm.example")
	}
	// Cuarto grant vencido y ya barrido: no recibe nada.
	past := time.Now().Add(-time.Hour)
	f.grantAccess(t, "user-4", c.ID, &past)
	f.users.Set("user-4", "user-4@firm.example")

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	f.poller.Enqueue(docket.Update{
		DocketID: "docket-400",
		Documents: []docket.Document{
			{ID: "doc-1", Description: "Motion to dismiss", DateFiled: time.Now()},
		},
	})

	if err := f.bridge.CheckNow(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}

	total := 0
	for _, u := range []string{"user-1", "user-2", "user-3", "user-4"} {
		events, err := f.notes.ListByUser(context.Background(), u, 0)
		if err != nil {
			t.Fatalf("list events for %s: %v", u, err)
		}
		if u == "user-4" && len(events) != 0 {
			t.Fatalf("expired grant must not be notified, got %d events", len(events))
		}
		total += len(events)
	}
	if total != 3 {
		t.Fatalf("expected exactly 3 notification rows, got %d", total)
	}
	if len(f.mailer.sent) != 3 {
		t.Fatalf("expected 3 emails, got %d", len(f.mailer.sent))
	}
}

func TestBridge_CheckNow_EndToEndSingleGrant(t *testing.T) {
	f := newFixture()

	c := f.registerCase(t, "999", "Case 42")
	f.grantAccess(t, "user-7", c.ID, nil)
	f.users.Set("user-7", "seven@firm.example")

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	f.poller.Enqueue(docket.Update{
		DocketID: "999",
		Documents: []docket.Document{
			{ID: "doc-9", Description: "Notice of appearance", DateFiled: time.Now()},
		},
	})

	if err := f.bridge.CheckNow(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}

	events, err := f.notes.ListByUser(context.Background(), "user-7", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	e := events[0]
	if e.Type != notifications.EventTypeNewFiling {
		t.Fatalf("expected new_filing, got %s", e.Type)
	}
	if !e.Notified || e.NotifiedAt == nil {
		t.Fatalf("expected event notified after successful send")
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].to != "seven@firm.example" {
		t.Fatalf("unexpected mail log: %#v", f.mailer.sent)
	}

	// El caso registra el fetch.
	got, err := f.cases.GetByID(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got.LastFetchedAt == nil {
		t.Fatalf("expected last_fetched_at set")
	}
}

func TestBridge_CheckNow_EmailFailureLeavesUnsent_RetryDelivers(t *testing.T) {
	f := newFixture()

	c := f.registerCase(t, "docket-500", "Acme v. Beta")
	f.grantAccess(t, "user-1", c.ID, nil)
	f.users.Set("user-1", "one@firm.example")

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	f.mailer.fail = true
	f.poller.Enqueue(docket.Update{
		DocketID: "docket-500",
		Documents: []docket.Document{
			{ID: "doc-1", Description: "Order", DateFiled: time.Now()},
		},
	})

	if err := f.bridge.CheckNow(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}

	events, _ := f.notes.ListByUser(context.Background(), "user-1", 0)
	if len(events) != 1 {
		t.Fatalf("expected the audit row even with mail down, got %d", len(events))
	}
	if events[0].Notified {
		t.Fatalf("expected row unsent after mail failure")
	}

	// Vuelve el SMTP: el retry sweep la entrega.
	f.mailer.fail = false
	sent, err := f.bridge.RetryUnsent(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 delivered on retry, got %d", sent)
	}

	events, _ = f.notes.ListByUser(context.Background(), "user-1", 0)
	if !events[0].Notified {
		t.Fatalf("expected row notified after retry")
	}
}

func TestBridge_CheckNow_UnresolvableDocketIsSkipped(t *testing.T) {
	f := newFixture()

	c := f.registerCase(t, "docket-600", "Known case")
	f.grantAccess(t, "user-1", c.ID, nil)
	f.users.Set("user-1", "one@firm.example")

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	// Docket monitoreado "de antes" sin caso interno: warning + skip.
	_ = f.poller.Monitor(context.Background(), "docket-ghost")
	f.poller.Enqueue(docket.Update{
		DocketID: "docket-ghost",
		Documents: []docket.Document{
			{ID: "doc-1", Description: "Mystery", DateFiled: time.Now()},
		},
	})

	if err := f.bridge.CheckNow(context.Background()); err != nil {
		t.Fatalf("check must not fail on unresolvable docket: %v", err)
	}

	events, _ := f.notes.ListByUser(context.Background(), "user-1", 0)
	if len(events) != 0 {
		t.Fatalf("expected no events for unrelated user, got %d", len(events))
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(f.mailer.sent))
	}
}

func TestBridge_CheckNow_UnknownRecipientLeavesUnsent(t *testing.T) {
	f := newFixture()

	c := f.registerCase(t, "docket-700", "No directory entry")
	f.grantAccess(t, "user-nomail", c.ID, nil)

	if err := f.bridge.SyncMonitoring(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	f.poller.Enqueue(docket.Update{
		DocketID: "docket-700",
		Documents: []docket.Document{
			{ID: "doc-1", Description: "Filing", DateFiled: time.Now()},
		},
	})

	if err := f.bridge.CheckNow(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}

	events, _ := f.notes.ListByUser(context.Background(), "user-nomail", 0)
	if len(events) != 1 || events[0].Notified {
		t.Fatalf("expected 1 unsent row, got %#v", events)
	}
}
