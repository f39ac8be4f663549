package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/askd/internal/identity"
	"golang.org/x/crypto/bcrypt"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := h.decodeBody(w, r, &req); err != nil || req.Username == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "Username and password are required")
		return req, false
	}
	return req, true
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	err := h.users.Register(persistCtx(r), req.Username, req.Password)
	switch {
	case errors.Is(err, identity.ErrDuplicateUser):
		Error(w, http.StatusBadRequest, "Username already exists")
		return
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		Error(w, http.StatusBadRequest, "Password is too long")
		return
	case err != nil:
		slog.Error("Registration failed", "username", req.Username, "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	slog.Info("User registered", "username", req.Username)
	JSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully",
		"status":  "success",
	})
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	sessionID, err := h.users.Authenticate(persistCtx(r), req.Username, req.Password)
	if err != nil {
		slog.Info("Login rejected", "ip", identity.IPFromRequest(r))
		Error(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if err := h.resolver.IssueCookie(w, req.Username, sessionID); err != nil {
		slog.Warn("Failed to issue session cookie", "error", err)
	}

	slog.Info("User logged in", "username", req.Username, "session_id", sessionID)
	JSON(w, http.StatusOK, map[string]string{
		"message":    "Login successful",
		"session_id": sessionID,
		"username":   req.Username,
	})
}

// Logout handles POST /logout. The session comes from the body or, failing
// that, the trusted login context.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		slog.Debug("Ignoring unreadable logout body", "error", err)
	}

	sessionID := req.SessionID
	trusted, hasTrusted := identity.TrustedFromContext(r.Context())
	if sessionID == "" && hasTrusted {
		sessionID = trusted.SessionID
	}

	principal := h.resolver.Resolve(r.Context(), sessionID)
	if sessionID == "" || !principal.Authenticated {
		Error(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	h.users.Revoke(persistCtx(r), principal.Username, sessionID)
	if hasTrusted && trusted.SessionID == sessionID {
		h.resolver.ClearCookie(w)
	}

	slog.Info("User logged out", "username", principal.Username, "session_id", sessionID)
	JSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
		"status":  "success",
	})
}
