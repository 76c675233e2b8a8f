package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/relay/internal/chat"
	"github.com/johndosdos/relay/internal/handler"
	"github.com/johndosdos/relay/internal/model"
	"github.com/johndosdos/relay/internal/store"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func startRelay(t *testing.T) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := chat.NewHub()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", handler.ServeWs(hub, store.NewMemStore()))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func dial(t *testing.T, server *httptest.Server) *testClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, server.URL+"/ws", nil)
	require.NoError(t, err)

	t.Cleanup(func() { conn.CloseNow() })

	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(event model.Event) {
	c.t.Helper()

	p, err := json.Marshal(event)
	require.NoError(c.t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, p))
}

func (c *testClient) readEvent() model.Event {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, p, err := c.conn.Read(ctx)
	require.NoError(c.t, err)

	var event model.Event
	require.NoError(c.t, json.Unmarshal(p, &event))
	return event
}

// expect reads events until one of the wanted type arrives, failing
// on timeout. Lets tests skip over interleaved presence updates.
func (c *testClient) expect(eventType string) model.Event {
	c.t.Helper()

	for i := 0; i < 10; i++ {
		event := c.readEvent()
		if event.Type == eventType {
			return event
		}
	}
	c.t.Fatalf("never received a %s event", eventType)
	return model.Event{}
}

func TestChatScenario(t *testing.T) {
	server := startRelay(t)

	// Connection A joins as alice: empty history, confirmation, and a
	// presence list of just alice.
	clientA := dial(t, server)
	clientA.send(model.Event{Type: model.EventJoin, Username: "alice"})

	event := clientA.readEvent()
	require.Equal(t, model.EventHistory, event.Type)
	assert.Empty(t, event.Messages)

	event = clientA.readEvent()
	require.Equal(t, model.EventJoinSuccess, event.Type)
	assert.Equal(t, "alice", event.Username)

	event = clientA.readEvent()
	require.Equal(t, model.EventUserList, event.Type)
	assert.Equal(t, []string{"alice"}, event.Users)

	// Connection B tries alice, loses, then joins as bob.
	clientB := dial(t, server)
	clientB.send(model.Event{Type: model.EventJoin, Username: "alice"})

	event = clientB.readEvent()
	require.Equal(t, model.EventJoinError, event.Type)
	assert.Contains(t, event.Text, "already taken")

	clientB.send(model.Event{Type: model.EventJoin, Username: "bob"})

	event = clientB.expect(model.EventJoinSuccess)
	assert.Equal(t, "bob", event.Username)

	event = clientB.expect(model.EventUserList)
	assert.ElementsMatch(t, []string{"alice", "bob"}, event.Users)

	// A hears that bob joined and sees the updated list.
	event = clientA.expect(model.EventNotification)
	assert.Equal(t, "bob has joined the chat.", event.Text)

	event = clientA.expect(model.EventUserList)
	assert.ElementsMatch(t, []string{"alice", "bob"}, event.Users)

	// A speaks; both sides receive the stamped message.
	clientA.send(model.Event{Type: model.EventMessage, Text: "hi"})

	for _, c := range []*testClient{clientA, clientB} {
		event = c.expect(model.EventMessage)
		require.NotNil(t, event.Message)
		assert.Equal(t, "alice", event.Message.User)
		assert.Equal(t, "hi", event.Message.Text)
		assert.NotEmpty(t, event.Message.Timestamp)
	}

	// B types; A sees the indicator, B gets nothing back.
	clientB.send(model.Event{Type: model.EventTyping})

	event = clientA.expect(model.EventTyping)
	assert.Equal(t, "bob", event.Username)

	// A leaves; B hears about it and the presence list shrinks.
	require.NoError(t, clientA.conn.Close(websocket.StatusNormalClosure, "bye"))

	event = clientB.expect(model.EventNotification)
	assert.Equal(t, "alice has left the chat.", event.Text)

	event = clientB.expect(model.EventUserList)
	assert.Equal(t, []string{"bob"}, event.Users)
}

func TestHistoryReplayToLateJoiner(t *testing.T) {
	server := startRelay(t)

	clientA := dial(t, server)
	clientA.send(model.Event{Type: model.EventJoin, Username: "alice"})
	clientA.expect(model.EventJoinSuccess)

	clientA.send(model.Event{Type: model.EventMessage, Text: "first"})
	clientA.expect(model.EventMessage)
	clientA.send(model.Event{Type: model.EventMessage, Text: "second"})
	clientA.expect(model.EventMessage)

	// A late joiner replays the log in chronological order before
	// anything else.
	clientB := dial(t, server)
	clientB.send(model.Event{Type: model.EventJoin, Username: "bob"})

	event := clientB.readEvent()
	require.Equal(t, model.EventHistory, event.Type)
	require.Len(t, event.Messages, 2)
	assert.Equal(t, "first", event.Messages[0].Text)
	assert.Equal(t, "second", event.Messages[1].Text)
}

func TestMalformedPayloadIgnored(t *testing.T) {
	server := startRelay(t)

	clientA := dial(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clientA.conn.Write(ctx, websocket.MessageText, []byte("not json")))

	// The connection survives and a join still works afterwards.
	clientA.send(model.Event{Type: model.EventJoin, Username: "alice"})
	event := clientA.expect(model.EventJoinSuccess)
	assert.Equal(t, "alice", event.Username)
}
