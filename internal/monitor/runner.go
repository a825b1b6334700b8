package monitor

import (
	"context"
	"sync"
	"time"

	"case-monitoring/internal/platform/logger"
)

// MinInterval es el piso del poll interval (lo exige el endpoint y el ws).
const MinInterval = 60 * time.Second

const defaultMaintenanceEvery = 24 * time.Hour

// Runner es el job periódico único del deployment: cada tick corre
// sync + check, y con cadencia más lenta el sweep de vencimientos y el
// retry de notificaciones sin entregar. No hay lock distribuido: se asume
// un solo scheduler por despliegue.
type Runner struct {
	bridge *Bridge
	grants grantSweeper
	log    logger.Logger

	mu       sync.Mutex
	interval time.Duration
	running  bool

	maintenanceEvery time.Duration
	lastMaintenance  time.Time
}

// grantSweeper es lo único que el runner necesita del servicio de grants.
type grantSweeper interface {
	ExpireDue(ctx context.Context) (int, error)
}

func NewRunner(bridge *Bridge, grants grantSweeper, interval time.Duration, log logger.Logger) *Runner {
	if interval < MinInterval {
		interval = MinInterval
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Runner{
		bridge:           bridge,
		grants:           grants,
		log:              log,
		interval:         interval,
		maintenanceEvery: defaultMaintenanceEvery,
	}
}

// SetInterval cambia el período en caliente, aplicando el piso de 60s.
// Devuelve el valor efectivo.
func (r *Runner) SetInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		d = MinInterval
	}
	r.mu.Lock()
	r.interval = d
	r.mu.Unlock()
	return d
}

func (r *Runner) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start lanza el loop en background. Cancelar ctx frena el loop; la
// pasada en curso termina entera (no hay cancelación a mitad de pasada).
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	r.setRunning(true)
	defer r.setRunning(false)

	for {
		// La pasada corre con un contexto desacoplado: "dejá terminar
		// la pasada actual" es la única semántica de cancelación.
		r.RunOnce(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.Interval()):
		}
	}
}

// RunOnce ejecuta una pasada completa: reconciliación, detección de
// novedades y, si tocó, el mantenimiento lento (sweep + retry). Todo
// error por item ya quedó logueado más abajo; acá solo se registran los
// fallos de ciclo entero y se sigue al próximo tick.
func (r *Runner) RunOnce(ctx context.Context) {
	if err := r.bridge.SyncMonitoring(ctx); err != nil {
		r.log.Error("sync monitoring failed", map[string]any{"error": err.Error()})
	}
	if err := r.bridge.CheckNow(ctx); err != nil {
		r.log.Error("update check failed", map[string]any{"error": err.Error()})
	}

	if r.maintenanceDue() {
		n, err := r.grants.ExpireDue(ctx)
		if err != nil {
			r.log.Error("expiry sweep failed", map[string]any{"error": err.Error()})
		} else if n > 0 {
			r.log.Info("expiry sweep", map[string]any{"expired": n})
		}

		sent, err := r.bridge.RetryUnsent(ctx)
		if err != nil {
			r.log.Error("retry sweep failed", map[string]any{"error": err.Error()})
		} else if sent > 0 {
			r.log.Info("retry sweep", map[string]any{"delivered": sent})
		}
	}
}

func (r *Runner) maintenanceDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastMaintenance) < r.maintenanceEvery {
		return false
	}
	r.lastMaintenance = now
	return true
}

func (r *Runner) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}
