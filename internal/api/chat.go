package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/ashureev/askd/internal/agent"
	"github.com/ashureev/askd/internal/domain"
	"github.com/ashureev/askd/internal/identity"
	"github.com/ashureev/askd/internal/prompt"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	Persona   string `json:"persona"`
}

type askResponse struct {
	Answer        string        `json:"answer"`
	Status        string        `json:"status"`
	SessionID     string        `json:"session_id"`
	Authenticated bool          `json:"authenticated"`
	Username      *string       `json:"username"`
	Persona       string        `json:"persona"`
	QuestionType  string        `json:"question_type"`
	History       []domain.Turn `json:"history"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

// Ask handles POST /ask.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req askRequest
	if err := h.decodeBody(w, r, &req); err != nil || req.Question == "" {
		Error(w, http.StatusBadRequest, "Missing 'question' in request body")
		return
	}

	ctx := r.Context()
	sessionID, err := h.resolver.DeclaredSessionID(ctx, req.SessionID)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	principal := h.resolver.Resolve(ctx, sessionID)

	persona, known := prompt.ParsePersona(req.Persona)
	if !known && req.Persona != "" {
		slog.Debug("Unknown persona, using default", "persona", req.Persona)
	}

	unlock := h.ledger.LockSession(sessionID)
	defer unlock()

	p := h.composer.Compose(persona, req.Question, h.ledger.Get(sessionID))

	slog.Info("Question received",
		"session_id", sessionID,
		"authenticated", principal.Authenticated,
		"persona", persona.String(),
		"question_type", p.Type.String(),
		"question_length", len(req.Question),
		"request_id", chiMiddleware.GetReqID(ctx),
	)

	answer, err := h.model.Ask(ctx, p.System, p.Question)
	if err != nil {
		slog.Error("Ask failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, fmt.Sprintf("Unexpected error: %s: %s", errorCategory(err), err))
		return
	}

	turn := domain.NewTurn(req.Question, answer, principal.Contributor(), persona.String())
	h.ledger.Append(persistCtx(r), sessionID, turn)

	resp := askResponse{
		Answer:        answer,
		Status:        "success",
		SessionID:     sessionID,
		Authenticated: principal.Authenticated,
		Persona:       persona.String(),
		QuestionType:  p.Type.String(),
		History:       h.ledger.Get(sessionID),
	}
	if principal.Authenticated {
		resp.Username = &principal.Username
	}
	JSON(w, http.StatusOK, resp)
}

// History handles GET /history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.resolver.DeclaredSessionID(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	history := h.ledger.Get(sessionID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"history":    history,
		"count":      len(history),
		"session_id": sessionID,
	})
}

// ClearHistory handles POST /clear-history.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		slog.Debug("Ignoring unreadable clear-history body", "error", err)
	}
	sessionID, err := h.resolver.DeclaredSessionID(r.Context(), req.SessionID)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	unlock := h.ledger.LockSession(sessionID)
	existed := h.ledger.Clear(persistCtx(r), sessionID)
	unlock()

	message := fmt.Sprintf("Chat history cleared for session %s", sessionID)
	if !existed {
		message = fmt.Sprintf("No chat history found for session %s", sessionID)
	}
	slog.Info("Chat history cleared", "session_id", sessionID, "existed", existed)
	JSON(w, http.StatusOK, map[string]string{
		"message": message,
		"status":  "success",
	})
}

// ClearAllHistory handles POST /clear-all-history.
func (h *Handler) ClearAllHistory(w http.ResponseWriter, r *http.Request) {
	n := h.ledger.ClearAll(persistCtx(r))
	slog.Info("All chat histories cleared", "sessions", n)
	JSON(w, http.StatusOK, map[string]interface{}{
		"message":          fmt.Sprintf("All chat histories cleared (%d sessions)", n),
		"status":           "success",
		"sessions_cleared": n,
	})
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	ids := h.ledger.SessionIDs()
	JSON(w, http.StatusOK, map[string]interface{}{
		"sessions": ids,
		"count":    len(ids),
	})
}

// NewSession handles GET /new-session.
func (h *Handler) NewSession(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"session_id": uuid.NewString()})
}

// ListPersonas handles GET /personas.
func (h *Handler) ListPersonas(w http.ResponseWriter, _ *http.Request) {
	catalog := h.composer.Catalog()
	personas := make(map[string]string)
	for _, p := range prompt.Personas() {
		personas[p.String()] = catalog.Instructions(p)
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"personas": personas,
		"count":    len(personas),
	})
}

// Save handles POST /save, writing both documents and reporting each result.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := persistCtx(r)
	historySaved := h.ledger.Save(ctx)
	usersSaved := h.users.Save(ctx)

	status := "success"
	if !historySaved || !usersSaved {
		status = "partial"
		slog.Warn("Manual save incomplete", "history_saved", historySaved, "users_saved", usersSaved)
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"history_saved": historySaved,
		"users_saved":   usersSaved,
		"status":        status,
	})
}

// errorCategory names the kind of failure reported to clients.
func errorCategory(err error) string {
	var apiErr *agent.APIError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		return "APIError"
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(err, context.Canceled):
		return "CanceledError"
	case errors.As(err, &netErr):
		return "ConnectionError"
	default:
		return "InternalError"
	}
}
