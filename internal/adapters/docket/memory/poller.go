// Package memory implementa un poller de dockets en memoria para dev y
// tests: las novedades se encolan a mano con Enqueue.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"case-monitoring/internal/ports/docket"
)

type Poller struct {
	mu        sync.Mutex
	monitored map[string]struct{}
	pending   []docket.Update

	// MonitorCalls cuenta llamadas a Monitor (lo usan los tests de
	// idempotencia del reconciler).
	MonitorCalls int
}

func NewPoller() *Poller {
	return &Poller{
		monitored: make(map[string]struct{}),
	}
}

func (p *Poller) Monitor(ctx context.Context, docketID string) error {
	docketID = strings.TrimSpace(docketID)
	if docketID == "" {
		return errors.New("docket id required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.MonitorCalls++
	p.monitored[docketID] = struct{}{}
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

// Enqueue agrega una novedad que devolverá el próximo FetchUpdates.
// Solo se entrega si el docket está monitoreado en ese momento.
func (p *Poller) Enqueue(u docket.Update) {
	p.mu.Lock()
	p.pending = append(p.pending, u)
	p.mu.Unlock()
}

func (p *Poller) FetchUpdates(ctx context.Context) ([]docket.Update, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]docket.Update, 0, len(p.pending))
	remaining := p.pending[:0]
	for _, u := range p.pending {
		if _, ok := p.monitored[u.DocketID]; ok {
			out = append(out, u)
			continue
		}
		remaining = append(remaining, u)
	}
	p.pending = remaining

	return out, nil
}
