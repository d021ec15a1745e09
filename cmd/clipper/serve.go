package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipper/clipper-server/internal/api"
	"github.com/clipper/clipper-server/internal/catalog"
	"github.com/clipper/clipper-server/internal/config"
	"github.com/clipper/clipper-server/internal/db"
	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/logging"
	"github.com/clipper/clipper-server/internal/mirror"
	"github.com/clipper/clipper-server/internal/project"
	"github.com/clipper/clipper-server/internal/publish"
	"github.com/clipper/clipper-server/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

// setup loads configuration and opens the local database.
func setup() (*config.EnvConfig, *slog.Logger, *db.DB, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg, err := config.New()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, logger, database, nil
}

// openRemote builds the configured mirror backend. The returned close
// function is never nil.
func openRemote(cfg config.Config, logger *slog.Logger) (mirror.Remote, func(), error) {
	switch cfg.Mirror() {
	case config.MirrorSupabase:
		m, err := mirror.NewSupabaseMirror(cfg.SupabaseURL(), cfg.SupabaseKey(), logger)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	case config.MirrorPostgres:
		m, err := mirror.ConnectPostgres(cfg.PostgresDSN(), logger)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {
			if err := m.Close(); err != nil {
				logger.Warn("failed to close postgres mirror", "error", err)
			}
		}, nil
	default:
		return mirror.NewStubMirror(logger), func() {}, nil
	}
}

func serve() error {
	startTime := time.Now()

	cfg, logger, database, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	logger.Info("starting clipper server",
		"version", config.Version,
		"data_dir", cfg.DataDir(),
		"worker_url", cfg.WorkerURL(),
		"mirror", cfg.Mirror(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := catalog.NewRepository(database.Conn())

	remote, closeRemote, err := openRemote(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s mirror: %w", cfg.Mirror(), err)
	}
	defer closeRemote()

	var outbox *mirror.Outbox
	if cfg.OutboxEnabled() {
		outbox = mirror.NewOutbox(repo, cfg.OutboxMaxAttempts(), logger)
	}
	courier := mirror.NewCourier(remote, outbox, logger)

	users := catalog.NewService(repo, courier, logger)
	deviceID, err := users.EnsureDeviceID(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	store := project.NewStore(catalog.NewStorage(repo), courier, logger)
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load projects: %w", err)
	}

	var tokens identity.TokenSource
	if cfg.ClerkSecretKey() != "" {
		tokens = identity.NewClerkClient(cfg.ClerkAPIURL(), cfg.ClerkSecretKey(), logger)
	} else {
		logger.Warn("no Clerk secret key configured, uploads will be refused")
		tokens = identity.NewStubTokenSource(logger)
	}

	verifier := identity.NewVerifier(cfg.SessionSecret(), cfg.SessionIssuer())
	if !verifier.Enabled() {
		logger.Warn("no session secret configured, all requests are anonymous")
	}

	var runner api.OutboxRunner
	if outbox != nil {
		r := mirror.NewRunner(outbox, remote, logger)
		go r.Start(ctx)
		runner = r
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Store:          store,
		Worker:         worker.NewHTTPClient(cfg.WorkerURL(), cfg.WorkerTimeout(), logger),
		WorkerURL:      cfg.WorkerURL(),
		Publisher:      publish.NewYouTubePublisher(logger),
		Tokens:         tokens,
		Verifier:       verifier,
		Users:          users,
		Outbox:         outbox,
		Runner:         runner,
		MirrorName:     remote.Name(),
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	store.Wait()
	users.Wait()

	logger.Info("shutdown complete")
	return nil
}
