// Package store holds the shared chat state: the set of online
// usernames, the connection-to-username bindings, and the bounded
// message history. The server process keeps no authoritative copy of
// any of this; a restart resumes from whatever the store holds.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/johndosdos/relay/internal/model"
)

// Key layout in the backing store.
const (
	KeyOnlineUsers = "chat:users:online"
	KeyBindings    = "chat:users:socket_to_username"
	KeyMessages    = "chat:messages"
)

// HistoryLimit caps the retained message history. Appends trim
// anything older than the newest HistoryLimit entries.
const HistoryLimit = 500

// ErrStoreUnavailable wraps every transport or command failure so
// callers can branch with errors.Is without knowing the backend.
// It is always transient and scoped to the failed operation.
var ErrStoreUnavailable = errors.New("store unavailable")

// Store is the contract for the identity registry and message log.
type Store interface {
	// Claim atomically adds username to the online set and, if it was
	// absent, records the connID binding. Returns false when the name
	// is already held by a live binding. Two connections racing for
	// one name see exactly one true.
	Claim(ctx context.Context, connID uuid.UUID, username string) (bool, error)

	// Release removes the binding for connID and frees its username
	// from the online set. Returns the released username, or "" if
	// the connection never joined. Safe to call more than once.
	Release(ctx context.Context, connID uuid.UUID) (string, error)

	// Lookup returns the username bound to connID, or "" if none.
	Lookup(ctx context.Context, connID uuid.UUID) (string, error)

	// Usernames returns a point-in-time presence snapshot. Order is
	// unspecified.
	Usernames(ctx context.Context) ([]string, error)

	// Append inserts msg at the head of the history and trims the
	// history to HistoryLimit entries as one atomic operation.
	Append(ctx context.Context, msg model.Message) error

	// Recent returns the retained history in chronological order,
	// oldest first.
	Recent(ctx context.Context) ([]model.Message, error)
}
