package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/relay/internal/chat"
	"github.com/johndosdos/relay/internal/model"
)

func startHub(t *testing.T) *chat.Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := chat.NewHub()
	go hub.Run(ctx)
	return hub
}

func register(t *testing.T, hub *chat.Hub) *chat.Client {
	t.Helper()

	c := chat.NewClient(nil)
	reg := chat.Registration{Client: c, Done: make(chan struct{})}
	hub.Register <- reg

	select {
	case <-reg.Done:
	case <-time.After(time.Second):
		t.Fatal("registration did not complete")
	}
	return c
}

func TestHubBroadcastReachesAll(t *testing.T) {
	hub := startHub(t)

	a := register(t, hub)
	b := register(t, hub)

	hub.Broadcast(model.Notification("hello"))

	for _, c := range []*chat.Client{a, b} {
		ev := recv(t, c)
		require.Equal(t, model.EventNotification, ev.Type)
		assert.Equal(t, "hello", ev.Text)
	}
}

func TestHubBroadcastExceptSkipsSender(t *testing.T) {
	hub := startHub(t)

	a := register(t, hub)
	b := register(t, hub)

	hub.BroadcastExcept(a.ID, model.Typing("alice"))

	ev := recv(t, b)
	assert.Equal(t, model.EventTyping, ev.Type)
	assertNoEvent(t, a)
}

func TestHubUnregisterClosesSendQueue(t *testing.T) {
	hub := startHub(t)

	a := register(t, hub)
	b := register(t, hub)

	hub.Unregister <- a

	select {
	case _, ok := <-a.Send:
		assert.False(t, ok, "send queue should be closed after unregister")
	case <-time.After(time.Second):
		t.Fatal("send queue was not closed")
	}

	// Broadcasts keep flowing to the remaining client.
	hub.Broadcast(model.Notification("still here"))
	ev := recv(t, b)
	assert.Equal(t, "still here", ev.Text)
}

func TestHubSkipsSlowClient(t *testing.T) {
	hub := startHub(t)

	slow := register(t, hub)
	fast := register(t, hub)

	// Fill the slow client's queue; further fan-out to it is dropped
	// instead of wedging the hub loop.
	for i := 0; i < cap(slow.Send); i++ {
		slow.Send <- model.Notification("filler")
	}

	hub.Broadcast(model.Notification("through"))

	ev := recv(t, fast)
	assert.Equal(t, "through", ev.Text)
}
