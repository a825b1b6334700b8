package monitor

import (
	"context"
	"time"

	"case-monitoring/internal/domain/accessgrants"
	"case-monitoring/internal/domain/cases"
	"case-monitoring/internal/domain/notifications"
	"case-monitoring/internal/platform/logger"
	"case-monitoring/internal/ports/docket"
	"case-monitoring/internal/ports/directory"
	"case-monitoring/internal/ports/mailer"
	"case-monitoring/internal/ws"
)

// Bridge reconcilia el set de dockets del poller contra la tabla de grants
// y hace el fan-out de novedades (fila de auditoría + email + websocket).
// Todas sus operaciones son idempotentes y seguras de correr desde un test
// sin levantar el proceso entero: no hay estado mutable escondido acá,
// el único estado vive en el poller y en los repos.
type Bridge struct {
	grants *accessgrants.Service
	cases  *cases.Service
	notes  *notifications.Service

	poller docket.Poller
	mail   mailer.Mailer
	users  directory.UserDirectory
	hub    *ws.Hub

	log logger.Logger
	now func() time.Time
}

func NewBridge(
	grants *accessgrants.Service,
	casesSvc *cases.Service,
	notes *notifications.Service,
	poller docket.Poller,
	mail mailer.Mailer,
	users directory.UserDirectory,
	hub *ws.Hub,
	log logger.Logger,
) *Bridge {
	if log == nil {
		log = logger.Nop{}
	}
	return &Bridge{
		grants: grants,
		cases:  casesSvc,
		notes:  notes,
		poller: poller,
		mail:   mail,
		users:  users,
		hub:    hub,
		log:    log,
		now:    time.Now,
	}
}

// SyncMonitoring alinea el set en memoria del poller con los grants activos.
// Tras un restart el set arranca vacío y esta pasada lo reconstruye. Dos
// corridas seguidas sin cambios de fondo no generan llamadas externas:
// se chequea membresía antes de pedir Monitor.
func (b *Bridge) SyncMonitoring(ctx context.Context) error {
	items, err := b.grants.ListMonitorable(ctx)
	if err != nil {
		return err
	}

	now := b.now()
	seen := map[string]struct{}{}

	for _, g := range items {
		// Fila vencida que el sweep todavía no barrió: la barremos acá
		// mismo y no se monitorea.
		if !g.IsActive(now) {
			if err := b.grants.Expire(ctx, g.ID); err != nil {
				b.log.Warn("expire-in-place failed", map[string]any{
					"grant_id": g.ID, "error": err.Error(),
				})
			}
			continue
		}

		c, err := b.cases.GetByID(ctx, g.CaseID)
		if err != nil {
			b.log.Warn("grant references unknown case", map[string]any{
				"grant_id": g.ID, "case_id": g.CaseID,
			})
			continue
		}
		if c.DocketID == "" {
			continue
		}
		if _, ok := seen[c.DocketID]; ok {
			continue
		}
		seen[c.DocketID] = struct{}{}

		if b.poller.IsMonitored(c.DocketID) {
			continue
		}

		if err := b.poller.Monitor(ctx, c.DocketID); err != nil {
			// Un docket caído no frena el resto; próxima pasada lo reintenta.
			b.log.Error("monitor_case failed", map[string]any{
				"docket_id": c.DocketID, "error": err.Error(),
			})
		}
	}

	return nil
}

// CheckNow trae las novedades de todos los dockets monitoreados y arma el
// fan-out. Devuelve error solo si el fetch en sí falló; los problemas por
// item (docket sin caso, mail caído) se loguean y se sigue.
func (b *Bridge) CheckNow(ctx context.Context) error {
	updates, err := b.poller.FetchUpdates(ctx)
	if err != nil {
		return err
	}

	totalNew := 0

	for _, u := range updates {
		if len(u.Documents) == 0 {
			continue
		}

		c, err := b.cases.ResolveDocket(ctx, u.DocketID)
		if err != nil {
			// Integridad de datos: docket monitoreado sin caso interno.
			b.log.Warn("update for unresolvable docket, skipping", map[string]any{
				"docket_id": u.DocketID,
			})
			continue
		}

		recipients, err := b.grants.FanOutForCase(ctx, c.ID)
		if err != nil {
			b.log.Error("fan-out query failed", map[string]any{
				"case_id": c.ID, "error": err.Error(),
			})
			continue
		}

		for _, g := range recipients {
			for _, doc := range u.Documents {
				b.notifyOne(ctx, g, c, doc)
			}
		}

		totalNew += len(u.Documents)
		b.broadcastUpdate(c, u, totalNew)

		if err := b.cases.TouchFetched(ctx, c.ID); err != nil {
			b.log.Warn("touch last_fetched failed", map[string]any{
				"case_id": c.ID, "error": err.Error(),
			})
		}
	}

	return nil
}

// notifyOne escribe la fila de auditoría y después intenta el email.
// Si el email falla la fila queda unsent: la levanta RetryUnsent, nunca
// se reintenta inline.
func (b *Bridge) notifyOne(ctx context.Context, g accessgrants.Grant, c cases.MonitoredCase, doc docket.Document) {
	e, err := b.notes.Record(ctx, notifications.RecordInput{
		CaseID:      c.ID,
		UserID:      g.UserID,
		Type:        notifications.EventTypeNewFiling,
		Title:       "New filing in " + caseDisplayName(c),
		Description: doc.Description,
		Data: filingPayload{
			DocketID:    c.DocketID,
			CaseName:    caseDisplayName(c),
			DocumentID:  doc.ID,
			Description: doc.Description,
			URL:         doc.URL,
			DateFiled:   doc.DateFiled,
		},
		EventDate: doc.DateFiled,
		Channel:   notifications.ChannelEmail,
	})
	if err != nil {
		b.log.Error("record notification failed", map[string]any{
			"case_id": c.ID, "user_id": g.UserID, "error": err.Error(),
		})
		return
	}

	b.deliver(ctx, e)
}

// deliver intenta la entrega por email de un evento ya grabado y marca
// notified si salió. Devuelve si se entregó.
func (b *Bridge) deliver(ctx context.Context, e notifications.Event) bool {
	to, err := b.users.Email(ctx, e.UserID)
	if err != nil {
		b.log.Warn("no email for user, leaving unsent", map[string]any{
			"user_id": e.UserID, "event_id": e.ID,
		})
		return false
	}

	subject, html, text, err := renderFilingEmail(e)
	if err != nil {
		b.log.Error("render email failed", map[string]any{
			"event_id": e.ID, "error": err.Error(),
		})
		return false
	}

	if err := b.mail.Send(ctx, to, subject, html, text); err != nil {
		b.log.Warn("email send failed, leaving unsent", map[string]any{
			"event_id": e.ID, "error": err.Error(),
		})
		return false
	}

	if _, err := b.notes.MarkNotified(ctx, e.ID); err != nil {
		b.log.Error("mark notified failed", map[string]any{
			"event_id": e.ID, "error": err.Error(),
		})
		return false
	}
	return true
}

// RetryUnsent drena filas que quedaron sin entregar (mail caído, crash a
// mitad del fan-out). Devuelve cuántas entregó.
func (b *Bridge) RetryUnsent(ctx context.Context) (int, error) {
	items, err := b.notes.ListUnsent(ctx, 100)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range items {
		if b.deliver(ctx, e) {
			sent++
		}
	}
	return sent, nil
}

func (b *Bridge) broadcastUpdate(c cases.MonitoredCase, u docket.Update, totalNew int) {
	if b.hub == nil {
		return
	}

	docs := make([]map[string]any, 0, len(u.Documents))
	for _, d := range u.Documents {
		docs = append(docs, map[string]any{
			"id":          d.ID,
			"description": d.Description,
			"date_filed":  d.DateFiled,
			"url":         d.URL,
		})
	}

	b.hub.Broadcast(map[string]any{
		"type":           "new_documents",
		"timestamp":      b.now().UTC().Format(time.RFC3339),
		"docket_id":      u.DocketID,
		"case_name":      caseDisplayName(c),
		"document_count": len(u.Documents),
		"documents":      docs,
		"total_new":      totalNew,
	})
}

func caseDisplayName(c cases.MonitoredCase) string {
	if c.Name != "" {
		return c.Name
	}
	return "docket " + c.DocketID
}
