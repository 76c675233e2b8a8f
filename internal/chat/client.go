package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/johndosdos/relay/internal/model"
)

// Client is one live transport session. The ID is assigned at upgrade
// time and never reused.
type Client struct {
	ID   uuid.UUID
	Send chan model.Event

	conn       *websocket.Conn
	messageLim *rate.Limiter
	typingLim  *rate.Limiter
}

// NewClient returns a new instance of Client.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.New(),
		Send: make(chan model.Event, 64),
		conn: conn,
	}
}

func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	c.messageLim = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

func (c *Client) SetTypingLimiter(requests int, window time.Duration) {
	c.typingLim = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

// deliver queues an event for this client only. Delivery is dropped
// rather than blocking the caller when the client cannot keep up.
func (c *Client) deliver(event model.Event) {
	select {
	case c.Send <- event:
	default:
		log.Printf("skipping %s event - client %s slow or gone", event.Type, c.ID)
	}
}

// ReadLoop reads events off the websocket and drives the session
// state machine. It returns when the connection dies; disconnect
// cleanup is unconditional.
func (c *Client) ReadLoop(ctx context.Context, session *Session, hub *Hub) {
	defer func() {
		// Registry cleanup is best effort; releasing the transport
		// and the hub slot is not.
		session.HandleDisconnect(context.WithoutCancel(ctx))
		hub.Unregister <- c
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				log.Printf("%v", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var event model.Event
		if err := json.Unmarshal(p, &event); err != nil {
			log.Printf("failed to process payload from client %s: %v", c.ID, err)
			continue
		}

		switch event.Type {
		case model.EventJoin:
			session.HandleJoin(ctx, event.Username)
		case model.EventMessage:
			session.HandleMessage(ctx, event.Text)
		case model.EventTyping:
			session.HandleTyping(ctx)
		default:
			log.Printf("ignoring unknown event type %q from client %s", event.Type, c.ID)
		}
	}
}

// WriteLoop drains the send queue onto the websocket. It exits when
// the hub closes the queue or ctx is cancelled.
func (c *Client) WriteLoop(ctx context.Context) {
	for {
		select {
		case event, ok := <-c.Send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}

			p, err := json.Marshal(event)
			if err != nil {
				log.Printf("failed to encode %s event: %v", event.Type, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = c.conn.Write(writeCtx, websocket.MessageText, p)
			cancel()
			if err != nil {
				log.Printf("failed to write %s event to client %s: %v", event.Type, c.ID, err)
				continue
			}

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "context cancelled")
			return
		}
	}
}
