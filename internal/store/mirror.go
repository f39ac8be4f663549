package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Mirror serializes one in-memory structure to a named backend document.
// Save and Load report success as a bool; failures are logged, never returned,
// so a failed write leaves in-memory state untouched and diverged from disk.
type Mirror struct {
	backend Backend
	name    string
	logger  *slog.Logger
	mu      sync.Mutex // serializes overlapping saves of the same document
}

// NewMirror creates a mirror for the given document.
func NewMirror(backend Backend, name string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{backend: backend, name: name, logger: logger}
}

// Name returns the mirrored document name.
func (m *Mirror) Name() string {
	return m.name
}

// Save overwrites the backing document with the JSON encoding of v.
func (m *Mirror) Save(ctx context.Context, v any) bool {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		m.logger.Error("Failed to encode document", "document", m.name, "error", err)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.backend.Write(ctx, m.name, body); err != nil {
		m.logger.Error("Failed to save document", "document", m.name, "error", err)
		return false
	}
	m.logger.Debug("Document saved", "document", m.name, "bytes", len(body))
	return true
}

// Load decodes the backing document into v. It returns false when the
// document is absent, unreadable or malformed. Callers decode into a fresh
// value and adopt it only when Load succeeds.
func (m *Mirror) Load(ctx context.Context, v any) bool {
	err := m.Decode(ctx, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotFound):
		m.logger.Info("No persisted document found", "document", m.name)
	default:
		m.logger.Error("Failed to load document", "document", m.name, "error", err)
	}
	return false
}

// Decode is Load for callers that must tell an absent document (ErrNotFound)
// apart from an unreadable or malformed one.
func (m *Mirror) Decode(ctx context.Context, v any) error {
	m.mu.Lock()
	body, err := m.backend.Read(ctx, m.name)
	m.mu.Unlock()

	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", m.name, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.name, err)
	}
	return nil
}
