// Package identity provides the username/password identity store and the
// resolution of request session identifiers to logged-in users.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/ashureev/askd/internal/domain"
	"github.com/ashureev/askd/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AdminUsername is the identity seeded when no users document exists.
const AdminUsername = "admin"

var (
	// ErrDuplicateUser is returned when registering an existing username.
	ErrDuplicateUser = errors.New("username already exists")

	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Persister mirrors the identity map to durable storage. Decode returns
// store.ErrNotFound when no document has been written yet.
type Persister interface {
	Save(ctx context.Context, v any) bool
	Decode(ctx context.Context, v any) error
}

// Store holds registered identities keyed by exact, case-sensitive username.
type Store struct {
	mu    sync.RWMutex
	users map[string]*domain.Identity
	cost  int

	// dummyHash is compared against for unknown users so both failure
	// paths spend the same bcrypt work.
	dummyHash []byte

	mirror    Persister
	persistMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		s.cost = cost
	}
}

// NewStore creates an empty identity store. mirror may be nil.
func NewStore(mirror Persister, opts ...Option) (*Store, error) {
	s := &Store{
		users:  make(map[string]*domain.Identity),
		cost:   bcrypt.DefaultCost,
		mirror: mirror,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// LoadOrSeed restores identities from the mirror. When no users document
// exists it seeds a single admin identity and persists it. An unreadable or
// malformed document is left in place: the admin is seeded in memory only,
// and nothing is written until the next identity change.
func (s *Store) LoadOrSeed(ctx context.Context, adminPassword string) error {
	if s.mirror == nil {
		return s.seed(ctx, adminPassword, false)
	}

	loaded := make(map[string]*domain.Identity)
	err := s.mirror.Decode(ctx, &loaded)
	switch {
	case err == nil:
		for name, ident := range loaded {
			if ident == nil {
				delete(loaded, name)
				continue
			}
			ident.Username = name
			if ident.Sessions == nil {
				ident.Sessions = []string{}
			}
		}
		s.mu.Lock()
		s.users = loaded
		s.mu.Unlock()
		slog.Info("Identities loaded", "users", len(loaded))
		return nil
	case errors.Is(err, store.ErrNotFound):
		return s.seed(ctx, adminPassword, true)
	default:
		slog.Error("Users document unreadable, seeding admin in memory only", "error", err)
		return s.seed(ctx, adminPassword, false)
	}
}

func (s *Store) seed(ctx context.Context, adminPassword string, persist bool) error {
	slog.Info("Seeding default admin identity", "username", AdminUsername, "persist", persist)
	s.mu.Lock()
	s.users = make(map[string]*domain.Identity)
	s.mu.Unlock()

	if err := s.add(AdminUsername, adminPassword); err != nil {
		return err
	}
	if persist {
		s.persist(ctx)
	}
	return nil
}

// Register stores a new identity with a bcrypt password hash.
// A failed registration leaves any existing identity untouched.
func (s *Store) Register(ctx context.Context, username, password string) error {
	if err := s.add(username, password); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

func (s *Store) add(username, password string) error {
	if s.exists(username) {
		return ErrDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return ErrDuplicateUser
	}
	s.users[username] = &domain.Identity{
		Username:     username,
		PasswordHash: string(hash),
		Sessions:     []string{},
	}
	return nil
}

// Authenticate verifies the password and issues a new session identifier.
func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	s.mu.RLock()
	ident, ok := s.users[username]
	hash := s.dummyHash
	if ok {
		hash = []byte(ident.PasswordHash)
	}
	s.mu.RUnlock()

	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if !ok || err != nil {
		return "", ErrInvalidCredentials
	}

	sessionID := uuid.NewString()

	s.mu.Lock()
	ident, ok = s.users[username]
	if !ok {
		s.mu.Unlock()
		return "", ErrInvalidCredentials
	}
	ident.AddSession(sessionID)
	s.mu.Unlock()

	s.persist(ctx)
	return sessionID, nil
}

// Revoke removes sessionID from the user's active sessions and reports
// whether it was present. Unknown users and sessions are a no-op.
func (s *Store) Revoke(ctx context.Context, username, sessionID string) bool {
	s.mu.Lock()
	removed := false
	if ident, ok := s.users[username]; ok {
		removed = ident.RemoveSession(sessionID)
	}
	s.mu.Unlock()

	s.persist(ctx)
	return removed
}

// Resolve returns the username owning sessionID, if any.
func (s *Store) Resolve(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, ident := range s.users {
		if ident.HasSession(sessionID) {
			return name, true
		}
	}
	return "", false
}

// HasSession reports whether sessionID is currently issued to username.
func (s *Store) HasSession(username, sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.users[username]
	return ok && ident.HasSession(sessionID)
}

// Get returns a copy of the identity, or nil.
func (s *Store) Get(username string) *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.users[username]
	if !ok {
		return nil
	}
	return ident.Clone()
}

// Usernames returns all registered usernames in sorted order.
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.users))
}

// Save writes the identity map to the mirror.
func (s *Store) Save(ctx context.Context) bool {
	if s.mirror == nil {
		return false
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.mirror.Save(ctx, s.snapshot())
}

func (s *Store) snapshot() map[string]*domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Identity, len(s.users))
	for name, ident := range s.users {
		out[name] = ident.Clone()
	}
	return out
}

func (s *Store) exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok
}

func (s *Store) persist(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	if !s.Save(ctx) {
		slog.Warn("Identities not persisted; in-memory state kept")
	}
}
