package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/config"
	sitehosthttp "github.com/sagarc03/sitehost/http"
	"github.com/sagarc03/sitehost/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the sitehost HTTP server: the public site viewer, the owner
dashboard, the admin console and the JSON API.

auth.session_secret (env: SITEHOST_AUTH_SESSION_SECRET) must be set to
at least 32 characters.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5708, "HTTP server port (env: SITEHOST_SERVER_PORT)")
	serveCmd.Flags().String("base-url", "", "public origin used in site URLs, e.g. https://sites.example.com")
	serveCmd.Flags().String("content-origin", "", "separate origin hosted sites are served from, e.g. https://usercontent.example.com")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	if cfg.Auth.SessionSecret == "" {
		return errors.New("auth.session_secret is required to serve (env: SITEHOST_AUTH_SESSION_SECRET)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var (
		serverMetrics *metrics.ServerMetrics
		recorder      sitehost.Recorder
	)
	if cfg.Metrics.Enabled {
		serverMetrics = metrics.New()
		recorder = serverMetrics
	}

	sites, err := newSiteService(cfg, db, store, recorder)
	if err != nil {
		return err
	}

	accounts, err := newAccountService(cfg, db)
	if err != nil {
		return err
	}

	handlerConfig := sitehosthttp.HandlerConfig{
		MaxUploadSize: cfg.Server.MaxUploadSize,
		SecureCookies: cfg.Server.SecureCookies,
		CORS:          cfg.CORS,
		HealthCheck:   db.Ping,
		ContentOrigin: cfg.Server.ContentOrigin,
	}
	if serverMetrics != nil {
		handlerConfig.Metrics = serverMetrics
	}
	if cfg.Auth.SignInRate > 0 {
		opts := []sitehosthttp.LimiterOption{sitehosthttp.WithRate(cfg.Auth.SignInRate, cfg.Auth.SignInBurst)}
		if serverMetrics != nil {
			opts = append(opts, sitehosthttp.WithOnDenied(func(string) { serverMetrics.IncRateLimited() }))
		}
		handlerConfig.SignInLimiter = sitehosthttp.NewIPLimiter(ctx, opts...)
	}

	handler := sitehosthttp.NewHandler(&handlerConfig, sites, accounts)

	var sweeper *sweepScheduler
	if cfg.Service.SweepSchedule != "" {
		sweeper, err = newSweepScheduler(sites, cfg.Service.SweepSchedule, cfg.Service.SweepGracePeriod)
		if err != nil {
			return err
		}
		sweeper.Start()
	}

	if required, setupErr := accounts.SetupRequired(ctx); setupErr == nil && required {
		slog.Warn("no administrator exists yet; finish setup at /setup or run 'sitehost setup'")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "base_url", cfg.Server.BaseURL, "storage", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}

	return nil
}
