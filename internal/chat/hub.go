// Package chat implements the relay core: the hub that fans events
// out to connected clients, and the per-connection session that
// sequences join, message, typing and disconnect handling against
// the shared store.
package chat

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/johndosdos/relay/internal/model"
)

// frame is one fan-out request. except, when non-nil, names the one
// connection the event must not reach.
type frame struct {
	event  model.Event
	except uuid.UUID
}

// Registration carries a client into the hub; Done is closed once
// the hub has recorded it.
type Registration struct {
	Client *Client
	Done   chan struct{}
}

// Hub owns the map of live connections. All access goes through its
// channels, so the Run loop is the only goroutine touching the map.
type Hub struct {
	clients    map[uuid.UUID]*Client
	Register   chan Registration
	Unregister chan *Client
	broadcast  chan frame
}

// NewHub returns a new instance of Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		Register:   make(chan Registration),
		Unregister: make(chan *Client),
		broadcast:  make(chan frame, 64),
	}
}

// Run manages registration and fan-out until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case reg := <-h.Register:
			h.clients[reg.Client.ID] = reg.Client
			close(reg.Done)

		case client := <-h.Unregister:
			if _, ok := h.clients[client.ID]; !ok {
				continue
			}
			delete(h.clients, client.ID)
			close(client.Send)

		case f := <-h.broadcast:
			for id, client := range h.clients {
				if id == f.except {
					continue
				}
				select {
				case client.Send <- f.event:
				default:
					log.Printf("skipping %s event - client %s slow or gone", f.event.Type, id)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// Broadcast fans event out to every connected client.
func (h *Hub) Broadcast(event model.Event) {
	h.broadcast <- frame{event: event}
}

// BroadcastExcept fans event out to every client but the named one.
func (h *Hub) BroadcastExcept(except uuid.UUID, event model.Event) {
	h.broadcast <- frame{event: event, except: except}
}
