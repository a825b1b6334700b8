package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"case-monitoring/internal/adapters/auth/iam"
	"case-monitoring/internal/adapters/courtlistener"
	"case-monitoring/internal/adapters/email"
	pg "case-monitoring/internal/adapters/storage/postgres"
	"case-monitoring/internal/platform/logger"
	"case-monitoring/internal/ports/auth"
	"case-monitoring/internal/ports/docket"
	"case-monitoring/internal/ports/mailer"
	"case-monitoring/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	// Migraciones al arranque si hay DSN (sin DSN corre in-memory, modo dev)
	dsn := os.Getenv("DB_DSN")
	if dsn != "" {
		path := os.Getenv("MIGRATIONS_PATH")
		if path == "" {
			path = "migrations"
		}
		if err := pg.Migrate(dsn, path); err != nil {
			log.Error("migrations failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}

	// Verifier real solo si hay IAM configurado; si no, modo dev con
	// X-Debug-User-ID
	var verifier auth.AuthVerifier
	if base := os.Getenv("IAM_BASE_URL"); base != "" {
		client, err := iam.NewClient(iam.Config{
			BaseURL: base,
			APIKey:  os.Getenv("IAM_API_KEY"),
		})
		if err != nil {
			log.Error("iam client init failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		verifier = iam.NewVerifier(client)
	}

	var poller docket.Poller
	if base := os.Getenv("COURTLISTENER_BASE_URL"); base != "" {
		p, err := courtlistener.New(courtlistener.Config{
			BaseURL:  base,
			APIToken: os.Getenv("COURTLISTENER_API_TOKEN"),
		}, log)
		if err != nil {
			log.Error("courtlistener init failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		poller = p
	}

	var mail mailer.Mailer
	if host := os.Getenv("SMTP_HOST"); host != "" {
		port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
		mail = email.NewSMTPMailer(email.Config{
			Host:     host,
			Port:     port,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		})
	}

	pollInterval := time.Duration(0)
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			pollInterval = time.Duration(secs) * time.Second
		}
	}

	handler, runner := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		Poller:       poller,
		Mailer:       mail,
		PollInterval: pollInterval,
		Log:          log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner.Start(ctx)

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
