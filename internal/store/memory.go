package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/johndosdos/relay/internal/model"
)

// MemStore is an in-process Store for tests and for running the relay
// without Redis. The mutex stands in for the atomicity the real store
// provides; state obviously does not survive a restart.
type MemStore struct {
	mu       sync.Mutex
	online   map[string]struct{}
	bindings map[uuid.UUID]string
	messages []model.Message // head = newest, mirroring the list layout
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		online:   make(map[string]struct{}),
		bindings: make(map[uuid.UUID]string),
	}
}

func (s *MemStore) Claim(_ context.Context, connID uuid.UUID, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.online[username]; taken {
		return false, nil
	}
	s.online[username] = struct{}{}
	s.bindings[connID] = username
	return true, nil
}

func (s *MemStore) Release(_ context.Context, connID uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.bindings[connID]
	if !ok {
		return "", nil
	}
	delete(s.bindings, connID)
	delete(s.online, username)
	return username, nil
}

func (s *MemStore) Lookup(_ context.Context, connID uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings[connID], nil
}

func (s *MemStore) Usernames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.bindings))
	for _, username := range s.bindings {
		users = append(users, username)
	}
	return users, nil
}

func (s *MemStore) Append(_ context.Context, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append([]model.Message{msg}, s.messages...)
	if len(s.messages) > HistoryLimit {
		s.messages = s.messages[:HistoryLimit]
	}
	return nil
}

func (s *MemStore) Recent(_ context.Context) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]model.Message, 0, len(s.messages))
	for i := len(s.messages) - 1; i >= 0; i-- {
		messages = append(messages, s.messages[i])
	}
	return messages, nil
}
