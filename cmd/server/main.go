package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/glanburn/music-manager/internal/api"
	"github.com/glanburn/music-manager/internal/auth"
	"github.com/glanburn/music-manager/internal/blob"
	"github.com/glanburn/music-manager/internal/config"
	"github.com/glanburn/music-manager/internal/logging"
	"github.com/glanburn/music-manager/internal/model"
	"github.com/glanburn/music-manager/internal/store"
	"github.com/glanburn/music-manager/internal/token"
	"github.com/glanburn/music-manager/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	pflag.StringVar(&configPath, "config", "", "path to YAML config file (optional)")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.Setup(cfg.Env)

	// Open SQLite metadata store.
	db, err := store.OpenSQLite(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	s, err := store.New(db)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	// Open bbolt blob store.
	blobs, err := blob.Open(cfg.Storage.BlobPath)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer blobs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reset artifacts stuck in VERIFYING from a previous run.
	if n, err := s.ResetStaleVerifying(ctx); err != nil {
		log.Warn("reset stale verifying", "error", err)
	} else if n > 0 {
		log.Info("reset stale VERIFYING artifacts to UPLOADED", "count", n)
	}

	authSvc := auth.New(s, cfg.Auth.SessionTTL)
	if err := seedAdmin(ctx, s, authSvc, cfg); err != nil {
		return err
	}

	tokens := token.NewIssuer(cfg.Auth.LinkTTL)

	// Start the verification worker in the background.
	w := worker.New(s, blobs, tokens, cfg.Worker.Interval)
	go w.Start(ctx)

	srv := api.New(s, blobs, tokens, authSvc, api.Options{
		CORSOrigin: cfg.CORSOrigin,
		Logger:     log,
	})
	httpServer := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		cancel()
		httpServer.Shutdown(context.Background())
	}()

	log.Info("music-manager listening", "address", cfg.HTTPServer.Address)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// seedAdmin creates the bootstrap admin account on a fresh database.
func seedAdmin(ctx context.Context, s *store.Store, authSvc *auth.Service, cfg config.Config) error {
	n, err := s.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	if cfg.Auth.AdminPassword == "" {
		return fmt.Errorf("fresh database: set ADMIN_PASSWORD to seed the first admin account")
	}
	if _, err := authSvc.Register(ctx, cfg.Auth.AdminEmail, "Administrator", cfg.Auth.AdminPassword, model.RoleAdmin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}
