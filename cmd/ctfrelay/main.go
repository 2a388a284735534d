package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
	_ "time/tzdata"                            // Embed tz database so the display zone loads anywhere

	ctftimeadapter "github.com/ctfrelay/ctfrelay/internal/adapter/driven/ctftime"
	sqliteadapter "github.com/ctfrelay/ctfrelay/internal/adapter/driven/sqlite"
	httphandler "github.com/ctfrelay/ctfrelay/internal/adapter/driving/http"
	"github.com/ctfrelay/ctfrelay/internal/application"
	"github.com/ctfrelay/ctfrelay/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"ctftime_base_url", cfg.CTFTimeBaseURL,
		"retention_days", cfg.RetentionDays,
		"sweep_interval", cfg.SweepInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Resolve the display zone before anything depends on it.
	zone, err := time.LoadLocation(cfg.DisplayZone)
	if err != nil {
		return err
	}

	// 4. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 5. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 6. Wire adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	eventClient := ctftimeadapter.NewClient(cfg.CTFTimeBaseURL, cfg.UserAgent)

	// 7. Create the dispatcher.
	dispatcher := application.NewDispatcher(eventClient, credentialStore, application.Settings{
		PrivilegedRole:   cfg.PrivilegedRole,
		MaxLookaheadDays: cfg.MaxLookaheadDays,
		EventLimit:       cfg.EventLimit,
		DisplayZone:      zone,
	})

	// 8. Start the retention sweep. Start is guarded, so a redundant call
	// from a process-ready hook would be a no-op.
	sweeper := application.NewSweeper(credentialStore, cfg.RetentionDays, cfg.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	// 9. Create the HTTP command surface.
	handler := httphandler.NewHandler(dispatcher, cfg.DefaultLookaheadDays, cfg.RetentionDays, slog.Default())
	mux := httphandler.NewServeMux(handler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("ctfrelay started",
		"listen_addr", cfg.ListenAddr,
		"privileged_role", cfg.PrivilegedRole,
		"display_zone", cfg.DisplayZone,
	)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
