package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/askd/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName carries the signed trusted session context issued at login.
	CookieName = "askd_session"

	// DefaultSessionID is used when a request declares no session.
	DefaultSessionID = "default_session"

	cookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const trustedKey contextKey = iota

// MaxSessionIDLength caps declared session identifiers, in bytes.
const MaxSessionIDLength = 256

// ErrInvalidSessionID is returned for declared session identifiers longer
// than MaxSessionIDLength.
var ErrInvalidSessionID = errors.New("session_id is too long")

// Trusted is the session context recorded at login and carried in a signed cookie.
type Trusted struct {
	Username  string
	SessionID string
}

// Principal is the outcome of resolving a session identifier.
type Principal struct {
	Authenticated bool
	Username      string
	SessionID     string
}

// Contributor returns the username for authenticated principals, otherwise
// the anonymous tag.
func (p Principal) Contributor() string {
	if p.Authenticated {
		return p.Username
	}
	return domain.AnonymousContributor
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Resolver determines whether a declared session identifier belongs to a
// logged-in identity.
type Resolver struct {
	store  *Store
	secret []byte
	secure bool
}

// NewResolver creates a resolver. Cookies are marked Secure unless isDev.
func NewResolver(store *Store, secret string, isDev bool) *Resolver {
	return &Resolver{store: store, secret: []byte(secret), secure: !isDev}
}

// TrustedFromContext extracts the trusted login context, if the request carried one.
func TrustedFromContext(ctx context.Context) (Trusted, bool) {
	t, ok := ctx.Value(trustedKey).(Trusted)
	return t, ok
}

// WithTrusted returns a context carrying t.
func WithTrusted(ctx context.Context, t Trusted) context.Context {
	return context.WithValue(ctx, trustedKey, t)
}

// Middleware verifies the session cookie and injects the trusted context.
// Missing or invalid cookies leave the request anonymous.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c, err := req.Cookie(CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, req)
			return
		}

		t, err := r.parseToken(c.Value)
		if err != nil {
			slog.Debug("Ignoring invalid session cookie", "error", err)
			next.ServeHTTP(w, req)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithTrusted(req.Context(), t)))
	})
}

// DeclaredSessionID picks the request's session identifier: the explicit
// value, then the trusted cookie's session, then DefaultSessionID. Session
// identifiers are opaque; only surrounding whitespace is trimmed.
func (r *Resolver) DeclaredSessionID(ctx context.Context, explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		if len(id) > MaxSessionIDLength {
			return "", ErrInvalidSessionID
		}
		return id, nil
	}
	if t, ok := TrustedFromContext(ctx); ok && t.SessionID != "" {
		return t.SessionID, nil
	}
	return DefaultSessionID, nil
}

// Resolve reports who, if anyone, is logged in under sessionID. The trusted
// context wins when it names the same session and has not been revoked;
// otherwise the identity store is consulted.
func (r *Resolver) Resolve(ctx context.Context, sessionID string) Principal {
	if t, ok := TrustedFromContext(ctx); ok && t.SessionID == sessionID {
		if r.store.HasSession(t.Username, sessionID) {
			return Principal{Authenticated: true, Username: t.Username, SessionID: sessionID}
		}
	}
	if username, ok := r.store.Resolve(sessionID); ok {
		return Principal{Authenticated: true, Username: username, SessionID: sessionID}
	}
	return Principal{SessionID: sessionID}
}

// IssueCookie records the trusted login context on the response.
func (r *Resolver) IssueCookie(w http.ResponseWriter, username, sessionID string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  username,
			IssuedAt: jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  now.Add(cookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.secure,
	})
	return nil
}

// ClearCookie removes the trusted login context from the client.
func (r *Resolver) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.secure,
	})
}

func (r *Resolver) parseToken(raw string) (Trusted, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Trusted{}, err
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return Trusted{}, errors.New("session cookie missing subject or sid")
	}
	return Trusted{Username: claims.Subject, SessionID: claims.SessionID}, nil
}

// IPFromRequest returns a normalized remote IP for rate limiting and logs.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
