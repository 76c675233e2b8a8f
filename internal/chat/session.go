package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/johndosdos/relay/internal/model"
	"github.com/johndosdos/relay/internal/store"
)

type sanitizer interface {
	Sanitize(s string) string
	SanitizeBytes(p []byte) []byte
}

// Session is the per-connection state machine: connected, joined,
// closed. All handlers run on the connection's read goroutine, so
// events from one connection are applied in the order sent; sessions
// interleave only through the store and the hub.
type Session struct {
	client    *Client
	hub       *Hub
	store     store.Store
	sanitizer sanitizer
	joined    bool
}

// NewSession returns a new instance of Session.
func NewSession(client *Client, hub *Hub, st store.Store) *Session {
	return &Session{
		client:    client,
		hub:       hub,
		store:     st,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// HandleJoin attempts to claim username for this connection. Exactly
// one of two connections racing for the same name succeeds; the
// loser gets a join_error. A second join on an already-joined
// session is rejected rather than rebound.
func (s *Session) HandleJoin(ctx context.Context, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		s.client.deliver(model.JoinError("Username cannot be empty."))
		return
	}

	if s.joined {
		s.client.deliver(model.JoinError("You have already joined the chat."))
		return
	}

	claimed, err := s.store.Claim(ctx, s.client.ID, username)
	if err != nil {
		log.Printf("[error] failed to claim username %q: %v", username, err)
		s.client.deliver(model.JoinError("Server is experiencing issues. Please try again later."))
		return
	}
	if !claimed {
		s.client.deliver(model.JoinError("Username is already taken. Please choose another."))
		return
	}

	s.joined = true
	log.Printf("client %s joined as %q", s.client.ID, username)

	// Replay history to this connection only, then confirm. The join
	// itself stands even when the replay fails.
	history, err := s.store.Recent(ctx)
	if err != nil {
		log.Printf("[error] failed to load history for %q: %v", username, err)
	}
	s.client.deliver(model.History(history))
	s.client.deliver(model.JoinSuccess(username))

	s.hub.BroadcastExcept(s.client.ID, model.Notification(username+" has joined the chat."))
	s.publishPresence(ctx)
}

// HandleMessage validates, stores and broadcasts one chat message.
// The append happens before the broadcast, so a store failure means
// the message is silently dropped, never half-delivered.
func (s *Session) HandleMessage(ctx context.Context, text string) {
	// Validate what will actually be stored: sanitizing can empty a
	// markup-only message, or grow one past the cap through escaping.
	text = s.sanitizer.Sanitize(text)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > model.MaxMessageLen {
		notice := fmt.Sprintf("Message length exceeds the %d-character limit.", model.MaxMessageLen)
		s.client.deliver(model.Notification(notice))
		return
	}

	if s.client.messageLim != nil && !s.client.messageLim.Allow() {
		log.Printf("client %s exceeded the message rate limit", s.client.ID)
		return
	}

	username, err := s.store.Lookup(ctx, s.client.ID)
	if err != nil {
		log.Printf("[error] failed to look up sender: %v", err)
		return
	}
	if username == "" {
		// Stale or never-joined connection.
		return
	}

	msg := model.NewMessage(username, text)

	if err := s.store.Append(ctx, msg); err != nil {
		log.Printf("[error] failed to store message from %q: %v", username, err)
		return
	}

	s.hub.Broadcast(model.Chat(msg))
}

// HandleTyping relays a typing signal to every other connection.
// Nothing is persisted and unbound connections are ignored.
func (s *Session) HandleTyping(ctx context.Context) {
	if s.client.typingLim != nil && !s.client.typingLim.Allow() {
		return
	}

	username, err := s.store.Lookup(ctx, s.client.ID)
	if err != nil {
		log.Printf("[error] failed to look up typing client: %v", err)
		return
	}
	if username == "" {
		return
	}

	s.hub.BroadcastExcept(s.client.ID, model.Typing(username))
}

// HandleDisconnect releases this connection's binding. Safe to call
// for connections that never joined, and more than once; only the
// call that actually frees a username notifies the others.
func (s *Session) HandleDisconnect(ctx context.Context) {
	username, err := s.store.Release(ctx, s.client.ID)
	if err != nil {
		// Transport teardown continues regardless; the binding stays
		// until the store recovers.
		log.Printf("[error] failed to release binding for client %s: %v", s.client.ID, err)
		return
	}
	if username == "" {
		return
	}

	s.joined = false
	log.Printf("client %s disconnected, released %q", s.client.ID, username)

	s.hub.BroadcastExcept(s.client.ID, model.Notification(username+" has left the chat."))
	s.publishPresence(ctx)
}

// publishPresence pushes the full user list to every connection.
func (s *Session) publishPresence(ctx context.Context) {
	users, err := s.store.Usernames(ctx)
	if err != nil {
		log.Printf("[error] failed to read presence list: %v", err)
		return
	}
	s.hub.Broadcast(model.UserList(users))
}
