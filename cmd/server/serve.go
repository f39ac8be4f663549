package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/askd/internal/agent"
	"github.com/ashureev/askd/internal/api"
	"github.com/ashureev/askd/internal/config"
	"github.com/ashureev/askd/internal/identity"
	"github.com/ashureev/askd/internal/middleware"
	"github.com/ashureev/askd/internal/prompt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "storage", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openState(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	catalog, err := loadCatalog(cfg.PromptsFile)
	if err != nil {
		return err
	}

	client, err := agent.NewAzureClient(agent.Config{
		Endpoint:    cfg.Azure.Endpoint,
		APIKey:      cfg.Azure.APIKey,
		APIVersion:  cfg.Azure.APIVersion,
		Deployment:  cfg.Azure.Deployment,
		Temperature: cfg.Azure.Temperature,
		MaxTokens:   cfg.Azure.MaxTokens,
		Timeout:     cfg.Azure.Timeout,
	}, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize model client: %w", err)
	}
	model := agent.NewService(client, cfg.Azure.Timeout, logger)

	rateLimiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer rateLimiter.Stop()

	resolver := identity.NewResolver(st.users, cfg.SessionSecret, cfg.IsDevelopment())
	handler := api.NewHandler(st.ledger, st.users, resolver, prompt.NewComposer(catalog), model, api.Options{
		RateLimiter: rateLimiter,
		MaxBodySize: cfg.MaxRequestBody,
	})
	healthHandler := api.NewHealthHandler(st.backend)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL)))
	r.Use(resolver.Middleware)

	healthHandler.RegisterHealth(r)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Azure.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	historySaved := st.ledger.Save(shutdownCtx)
	usersSaved := st.users.Save(shutdownCtx)
	slog.Info("Server stopped successfully", "history_saved", historySaved, "users_saved", usersSaved)
	return nil
}

func loadCatalog(path string) (*prompt.Catalog, error) {
	if path == "" {
		catalog, err := prompt.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in prompts: %w", err)
		}
		return catalog, nil
	}
	catalog, err := prompt.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts from %s: %w", path, err)
	}
	slog.Info("Prompt catalog loaded", "path", path)
	return catalog, nil
}
