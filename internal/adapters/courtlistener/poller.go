package courtlistener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"case-monitoring/internal/platform/httpclient"
	"case-monitoring/internal/platform/logger"
	"case-monitoring/internal/ports/docket"
)

var (
	ErrNotConfigured = errors.New("courtlistener client not configured")
	ErrUpstream      = errors.New("courtlistener upstream error")
)

// Config del cliente CourtListener.
// BaseURL y APIToken normalmente vienen de env vars.
type Config struct {
	BaseURL  string
	APIToken string

	Timeout time.Duration
}

// Poller implementa ports/docket.Poller contra la API REST de CourtListener.
// El set de dockets monitoreados vive acá, en memoria: es efímero a
// propósito y el reconciler lo reconstruye desde los grants tras un restart.
type Poller struct {
	client *httpclient.Client
	token  string
	log    logger.Logger
	now    func() time.Time

	mu sync.Mutex
	// monitored: docketID -> cursor (solo interesan documentos posteriores).
	monitored map[string]time.Time
}

func New(cfg Config, log logger.Logger) (*Poller, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), timeout)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}

	return &Poller{
		client:    client,
		token:     strings.TrimSpace(cfg.APIToken),
		log:       log,
		now:       time.Now,
		monitored: make(map[string]time.Time),
	}, nil
}

func (p *Poller) IsConfigured() bool {
	return p != nil && p.client != nil && p.client.BaseURL != "" && p.token != ""
}

// Monitor valida que el docket exista del lado de CourtListener y lo agrega
// al set activo con el cursor en "ahora" (lo anterior ya no es novedad).
func (p *Poller) Monitor(ctx context.Context, docketID string) error {
	if !p.IsConfigured() {
		return ErrNotConfigured
	}
	docketID = strings.TrimSpace(docketID)
	if docketID == "" {
		return errors.New("docket id required")
	}

	if p.IsMonitored(docketID) {
		return nil
	}

	path := fmt.Sprintf("/api/rest/v4/dockets/%s/", docketID)
	if err := p.client.DoJSON(ctx, http.MethodGet, path, p.headers(), nil, nil); err != nil {
		return fmt.Errorf("%w: docket %s: %v", ErrUpstream, docketID, err)
	}

	p.mu.Lock()
	p.monitored[docketID] = p.now()
	p.mu.Unlock()

	p.log.Info("docket monitoring started", map[string]any{"docket_id": docketID})
	return nil
}

func (p *Poller) IsMonitored(docketID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.monitored[strings.TrimSpace(docketID)]
	return ok
}

func (p *Poller) Forget(docketID string) {
	p.mu.Lock()
	delete(p.monitored, strings.TrimSpace(docketID))
	p.mu.Unlock()
}

type searchResponse struct {
	Next    string `json:"next"`
	Results []struct {
		ID          int    `json:"id"`
		DocketID    int    `json:"docket"`
		Description string `json:"description"`
		DateCreated string `json:"date_created"`
		AbsoluteURL string `json:"absolute_url"`
	} `json:"results"`
}

const maxPages = 5

// FetchUpdates trae en una pasada los documentos nuevos de todos los dockets
// monitoreados (un solo query con docket__in, no un request por docket) y
// avanza los cursores de los dockets con novedades.
func (p *Poller) FetchUpdates(ctx context.Context) ([]docket.Update, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	p.mu.Lock()
	ids := make([]string, 0, len(p.monitored))
	oldest := p.now()
	cursors := make(map[string]time.Time, len(p.monitored))
	for id, cur := range p.monitored {
		ids = append(ids, id)
		cursors[id] = cur
		if cur.Before(oldest) {
			oldest = cur
		}
	}
	p.mu.Unlock()

	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("docket__in", strings.Join(ids, ","))
	q.Set("date_created__gte", oldest.UTC().Format(time.RFC3339))
	q.Set("order_by", "date_created")
	q.Set("page_size", "100")

	byDocket := make(map[string][]docket.Document)
	latest := make(map[string]time.Time)

	path := "/api/rest/v4/recap-documents/?" + q.Encode()
	for page := 0; path != "" && page < maxPages; page++ {
		var resp searchResponse
		if err := p.client.DoJSON(ctx, http.MethodGet, path, p.headers(), nil, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}

		for _, doc := range resp.Results {
			docketID := fmt.Sprintf("%d", doc.DocketID)
			cur, ok := cursors[docketID]
			if !ok {
				continue
			}

			filed, err := time.Parse(time.RFC3339, doc.DateCreated)
			if err != nil || !filed.After(cur) {
				continue
			}

			byDocket[docketID] = append(byDocket[docketID], docket.Document{
				ID:          fmt.Sprintf("%d", doc.ID),
				Description: doc.Description,
				DateFiled:   filed,
				URL:         doc.AbsoluteURL,
			})
			if filed.After(latest[docketID]) {
				latest[docketID] = filed
			}
		}

		path = resp.Next
	}

	// Avanzar cursores solo de los dockets con novedades.
	p.mu.Lock()
	for id, t := range latest {
		if _, ok := p.monitored[id]; ok {
			p.monitored[id] = t
		}
	}
	p.mu.Unlock()

	out := make([]docket.Update, 0, len(byDocket))
	for id, docs := range byDocket {
		out = append(out, docket.Update{DocketID: id, Documents: docs})
	}
	return out, nil
}

func (p *Poller) headers() map[string]string {
	return map[string]string{
		"Authorization": "Token " + p.token,
	}
}
