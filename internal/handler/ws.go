package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/johndosdos/relay/internal/chat"
	"github.com/johndosdos/relay/internal/store"
)

// ServeWs handles the client's websocket connection upgrade.
func ServeWs(hub *chat.Hub, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("[error] failed to upgrade connection to WebSocket: %v", err)
			return
		}

		// We'll register our new client to the central hub.
		c := chat.NewClient(conn)
		c.SetMessageLimiter(30, time.Minute)
		c.SetTypingLimiter(60, time.Minute)

		log.Printf("client connected: %s", c.ID)

		reg := chat.Registration{
			Client: c,
			Done:   make(chan struct{}),
		}

		hub.Register <- reg

		// Wait for registration to complete.
		<-reg.Done

		session := chat.NewSession(c, hub, st)

		// We block on ReadLoop because the request context is
		// cancelled as soon as we return from the handler.
		go c.WriteLoop(ctx)
		c.ReadLoop(ctx, session, hub)
	}
}
