// askd - question answering service over a hosted language model.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/askd/internal/config"
	"github.com/ashureev/askd/internal/identity"
	"github.com/ashureev/askd/internal/ledger"
	"github.com/ashureev/askd/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "askd",
	Short: "Question answering service with per-session history",
	Long: `askd answers questions through a hosted language model, keeping a bounded
conversation history per session and optional username/password accounts.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if err := godotenv.Load(); err != nil {
			slog.Info("No .env file found, using environment variables")
		}
	},
	RunE: runServe,
}

func main() {
	slog.SetDefault(newLogger(slog.LevelInfo))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, userCmd, sessionsCmd)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

// state is the persisted data shared by the server and offline commands.
type state struct {
	backend store.Backend
	ledger  *ledger.Ledger
	users   *identity.Store
}

// openState opens the configured backend and loads both documents, seeding
// the admin identity when no user registry exists.
func openState(ctx context.Context, cfg *config.Config) (*state, error) {
	backend, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := backend.Ping(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("storage health check: %w", err)
	}
	slog.Info("Storage connected", "backend", cfg.Storage.Backend)

	l := ledger.New(cfg.MaxHistoryLength, store.NewMirror(backend, store.DocChatHistory, nil))
	if l.Load(ctx) {
		slog.Info("Chat history loaded", "sessions", len(l.SessionIDs()))
	} else {
		slog.Info("Starting with empty chat history")
	}

	users, err := identity.NewStore(store.NewMirror(backend, store.DocUsers, nil), identity.WithBcryptCost(cfg.BcryptCost))
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("create identity store: %w", err)
	}
	if err := users.LoadOrSeed(ctx, cfg.AdminPassword); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("load users: %w", err)
	}
	if cfg.AdminPassword == "admin123" {
		slog.Warn("Default admin password in use, set ADMIN_PASSWORD")
	}

	return &state{backend: backend, ledger: l, users: users}, nil
}

func (s *state) Close() {
	if err := s.backend.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
}
