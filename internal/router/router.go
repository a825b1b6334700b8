package router

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	memdocket "case-monitoring/internal/adapters/docket/memory"
	"case-monitoring/internal/adapters/directory"
	"case-monitoring/internal/adapters/email"
	mem "case-monitoring/internal/adapters/storage/memory"
	pg "case-monitoring/internal/adapters/storage/postgres"
	"case-monitoring/internal/domain/accessgrants"
	"case-monitoring/internal/domain/cases"
	"case-monitoring/internal/domain/notifications"
	"case-monitoring/internal/middleware"
	"case-monitoring/internal/monitor"
	"case-monitoring/internal/platform/logger"
	"case-monitoring/internal/ports/auth"
	userdir "case-monitoring/internal/ports/directory"
	"case-monitoring/internal/ports/docket"
	"case-monitoring/internal/ports/mailer"
	"case-monitoring/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: si no viene, poller in-memory (dev/tests).
	Poller docket.Poller

	// Opcional: si no viene, mailer que solo loguea.
	Mailer mailer.Mailer

	// Opcional: si no viene, directorio estático desde env.
	Users userdir.UserDirectory

	PollInterval time.Duration

	Log logger.Logger
}

// NewRouter arma el grafo completo: repos, services, bridge, scheduler y
// rutas. Devuelve también el Runner para que main decida cuándo arrancar
// el loop de polling.
func NewRouter(opts Options) (http.Handler, *monitor.Runner) {
	log := opts.Log
	if log == nil {
		log = logger.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var (
		grantsRepo accessgrants.Repository
		casesRepo  cases.Repository
		notesRepo  notifications.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			}
		}
	}

	if db != nil {
		grantsRepo = pg.NewGrantsRepo(db)
		casesRepo = pg.NewCasesRepo(db)
		notesRepo = pg.NewNotificationsRepo(db)
	} else {
		grantsRepo = mem.NewGrantsRepo()
		casesRepo = mem.NewCasesRepo()
		notesRepo = mem.NewNotificationsRepo()
	}

	// Services por módulo
	grantsSvc := accessgrants.NewService(grantsRepo)
	casesSvc := cases.NewService(casesRepo)
	notesSvc := notifications.NewService(notesRepo)

	// Colaboradores externos, con defaults de dev
	poller := opts.Poller
	if poller == nil {
		poller = memdocket.NewPoller()
	}
	mail := opts.Mailer
	if mail == nil {
		mail = email.NewLogMailer(log)
	}
	users := opts.Users
	if users == nil {
		users = directory.NewStaticFromEnv(os.Getenv("USER_EMAILS"))
	}

	hub := ws.NewHub(log)
	bridge := monitor.NewBridge(grantsSvc, casesSvc, notesSvc, poller, mail, users, hub, log)
	runner := monitor.NewRunner(bridge, grantsSvc, opts.PollInterval, log)

	// Rutas por módulo
	cases.RegisterRoutes(r, casesSvc)
	accessgrants.RegisterRoutes(r, grantsSvc, casesSvc)
	notifications.RegisterRoutes(r, notesSvc)
	monitor.RegisterRoutes(r, bridge, runner, hub)

	wsHandler := ws.NewHandler(hub, bridge, runner.Interval, log)
	r.Get("/ws", wsHandler.ServeHTTP)

	return r, runner
}
