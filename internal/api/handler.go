// Package api provides HTTP handlers for the askd API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/askd/internal/identity"
	"github.com/ashureev/askd/internal/ledger"
	"github.com/ashureev/askd/internal/prompt"
	"github.com/go-chi/chi/v5"
)

const defaultMaxRequestBodySize = 1 << 20 // 1MB

// Asker is the model call: composed instructions and question in, answer out.
type Asker interface {
	Ask(ctx context.Context, system, question string) (string, error)
}

// Handler serves the question, history and account endpoints.
type Handler struct {
	ledger      *ledger.Ledger
	users       *identity.Store
	resolver    *identity.Resolver
	composer    *prompt.Composer
	model       Asker
	rateLimiter *RateLimiter
	maxBodySize int64
}

// Options carries optional Handler settings.
type Options struct {
	RateLimiter *RateLimiter
	MaxBodySize int64
}

// NewHandler creates a Handler over explicitly owned state.
func NewHandler(l *ledger.Ledger, users *identity.Store, resolver *identity.Resolver, composer *prompt.Composer, model Asker, opts Options) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxRequestBodySize
	}
	return &Handler{
		ledger:      l,
		users:       users,
		resolver:    resolver,
		composer:    composer,
		model:       model,
		rateLimiter: opts.RateLimiter,
		maxBodySize: opts.MaxBodySize,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.Ask)
	r.Get("/history", h.History)
	r.Post("/clear-history", h.ClearHistory)
	r.Post("/clear-all-history", h.ClearAllHistory)
	r.Get("/sessions", h.ListSessions)
	r.Get("/new-session", h.NewSession)
	r.Get("/personas", h.ListPersonas)
	r.Post("/save", h.Save)

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes an optional JSON body into v. An empty body is not an error.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// persistCtx detaches persistence from client cancellation so a dropped
// connection cannot abort a save after the in-memory mutation.
func persistCtx(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
