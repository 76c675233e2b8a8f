// Command loadtest drives a running relay with N concurrent chat
// clients to shake out fan-out and presence handling under load.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/johndosdos/relay/internal/model"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/ws", "relay websocket endpoint")
		clients  = flag.Int("clients", 10, "number of concurrent clients")
		messages = flag.Int("messages", 20, "messages sent per client")
		interval = flag.Duration("interval", 500*time.Millisecond, "delay between messages")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := runClient(ctx, *url, n, *messages, *interval); err != nil {
				log.Printf("client %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()
}

func runClient(ctx context.Context, url string, n, messages int, interval time.Duration) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	// Drain server events so the connection doesn't back up.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	send := func(event model.Event) error {
		p, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, p)
	}

	username := fmt.Sprintf("loadtest-%d-%d", n, time.Now().UnixNano()%100000)
	if err := send(model.Event{Type: model.EventJoin, Username: username}); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	for i := 0; i < messages; i++ {
		if err := send(model.Event{Type: model.EventTyping}); err != nil {
			return fmt.Errorf("typing: %w", err)
		}
		text := fmt.Sprintf("message %d from %s", i, username)
		if err := send(model.Event{Type: model.EventMessage, Text: text}); err != nil {
			return fmt.Errorf("message: %w", err)
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return conn.Close(websocket.StatusNormalClosure, "done")
}
