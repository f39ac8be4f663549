// Package store provides the persistence mirror and its document backends.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Backend when the named document does not exist.
var ErrNotFound = errors.New("document not found")

// Document names used by the server.
const (
	DocChatHistory = "chat_history"
	DocUsers       = "users"
)

// Backend stores whole JSON documents by name.
type Backend interface {
	// Read returns the stored document body, or ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write replaces the stored document body entirely.
	Write(ctx context.Context, name string, body []byte) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
