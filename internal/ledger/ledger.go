// Package ledger holds the per-session conversation history.
package ledger

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/ashureev/askd/internal/domain"
)

// DefaultMaxTurns is the number of turns kept per session when no limit is given.
const DefaultMaxTurns = 10

// Persister mirrors the ledger to durable storage.
type Persister interface {
	Save(ctx context.Context, v any) bool
	Load(ctx context.Context, v any) bool
}

// Ledger maps session identifiers to their most recent turns, oldest first.
// Sequences are created lazily and never grow beyond the configured maximum.
type Ledger struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Turn
	max      int

	mirror    Persister
	persistMu sync.Mutex

	// sessionLocks serializes read-modify-write sequences per session. An
	// entry lives only while some caller holds or waits on it.
	locksMu      sync.Mutex
	sessionLocks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty ledger. mirror may be nil for a memory-only ledger.
func New(maxTurns int, mirror Persister) *Ledger {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Ledger{
		sessions:     make(map[string][]domain.Turn),
		max:          maxTurns,
		mirror:       mirror,
		sessionLocks: make(map[string]*sessionLock),
	}
}

// Max returns the per-session turn limit.
func (l *Ledger) Max() int {
	return l.max
}

// Append adds turn to the end of the session's sequence, dropping the oldest
// turns once the limit is exceeded.
func (l *Ledger) Append(ctx context.Context, sessionID string, turn domain.Turn) {
	l.mu.Lock()
	seq := append(l.sessions[sessionID], turn)
	if len(seq) > l.max {
		seq = slices.Clone(seq[len(seq)-l.max:])
	}
	l.sessions[sessionID] = seq
	l.mu.Unlock()

	l.persist(ctx)
}

// Get returns a copy of the session's turns, or an empty slice if unknown.
func (l *Ledger) Get(sessionID string) []domain.Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seq := l.sessions[sessionID]
	out := make([]domain.Turn, len(seq))
	copy(out, seq)
	return out
}

// Clear removes the session and reports whether it existed.
func (l *Ledger) Clear(ctx context.Context, sessionID string) bool {
	l.mu.Lock()
	_, ok := l.sessions[sessionID]
	delete(l.sessions, sessionID)
	l.mu.Unlock()

	if ok {
		l.persist(ctx)
	}
	return ok
}

// ClearAll empties the ledger and returns how many sessions it held.
func (l *Ledger) ClearAll(ctx context.Context) int {
	l.mu.Lock()
	n := len(l.sessions)
	l.sessions = make(map[string][]domain.Turn)
	l.mu.Unlock()

	l.persist(ctx)
	return n
}

// SessionIDs returns every known session identifier in sorted order.
func (l *Ledger) SessionIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.sessions))
}

// Snapshot returns a deep copy of the whole ledger.
func (l *Ledger) Snapshot() map[string][]domain.Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string][]domain.Turn, len(l.sessions))
	for id, seq := range l.sessions {
		out[id] = slices.Clone(seq)
	}
	return out
}

// Replace swaps the ledger contents wholesale, trimming oversized sequences.
func (l *Ledger) Replace(sessions map[string][]domain.Turn) {
	next := make(map[string][]domain.Turn, len(sessions))
	for id, seq := range sessions {
		if len(seq) > l.max {
			seq = seq[len(seq)-l.max:]
		}
		next[id] = slices.Clone(seq)
	}

	l.mu.Lock()
	l.sessions = next
	l.mu.Unlock()
}

// Load restores the ledger from its mirror. It returns false, leaving the
// ledger empty, when no mirror is attached or the document is absent or invalid.
func (l *Ledger) Load(ctx context.Context) bool {
	if l.mirror == nil {
		return false
	}
	loaded := make(map[string][]domain.Turn)
	if !l.mirror.Load(ctx, &loaded) {
		return false
	}
	l.Replace(loaded)
	slog.Info("Conversation history loaded", "sessions", len(loaded))
	return true
}

// Save writes the current ledger to its mirror.
func (l *Ledger) Save(ctx context.Context) bool {
	if l.mirror == nil {
		return false
	}
	l.persistMu.Lock()
	defer l.persistMu.Unlock()
	return l.mirror.Save(ctx, l.Snapshot())
}

// persist mirrors the ledger after a mutation. Snapshots are taken under
// persistMu so the last mutation is always the last one written.
func (l *Ledger) persist(ctx context.Context) {
	if l.mirror == nil {
		return
	}
	if !l.Save(ctx) {
		slog.Warn("Conversation history not persisted; in-memory state kept")
	}
}

// LockSession acquires the per-session lock and returns its release func.
// Other sessions are unaffected while it is held.
func (l *Ledger) LockSession(sessionID string) func() {
	l.locksMu.Lock()
	lk, ok := l.sessionLocks[sessionID]
	if !ok {
		lk = &sessionLock{}
		l.sessionLocks[sessionID] = lk
	}
	lk.refs++
	l.locksMu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()

		l.locksMu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.sessionLocks, sessionID)
		}
		l.locksMu.Unlock()
	}
}

// lockCount returns the number of live per-session locks.
func (l *Ledger) lockCount() int {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	return len(l.sessionLocks)
}
