package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// newTestServer upgrades every request and hands the connection to fn.
func newTestServer(t *testing.T, fn func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, ch <-chan Message, within time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(within):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestDispatchByType(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		msg, _ := newMessage(TypeMatchFound, map[string]string{"battleId": "b-1"})
		_ = conn.WriteJSON(msg)
		for { // hold the connection open
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client := NewClient(Config{Url: url})
	defer client.Disconnect()

	received := make(chan Message, 1)
	client.On(string(TypeMatchFound), func(msg Message) {
		received <- msg
	})
	require.NoError(t, client.Connect(context.Background(), ""))

	msg := waitFor(t, received, 2*time.Second)
	assert.Equal(t, TypeMatchFound, msg.Type)
	assert.Contains(t, string(msg.Data), "b-1")
}

func TestQueuedMessagesFlushInOrder(t *testing.T) {
	frames := make(chan Message, 8)
	url := newTestServer(t, func(conn *websocket.Conn) {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			frames <- msg
		}
	})

	client := NewClient(Config{Url: url})
	defer client.Disconnect()

	// Not connected yet: everything queues
	require.NoError(t, client.Send(TypeJoinBattle, map[string]string{"battleId": "b-1"}))
	require.NoError(t, client.Send(TypeChatMessage, map[string]string{"message": "hi"}))
	require.NoError(t, client.Connect(context.Background(), "b-1"))

	first := waitFor(t, frames, 2*time.Second)
	second := waitFor(t, frames, 2*time.Second)
	assert.Equal(t, TypeJoinBattle, first.Type)
	assert.Equal(t, TypeChatMessage, second.Type)
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	frames := make(chan Message, 8)
	url := newTestServer(t, func(conn *websocket.Conn) {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			frames <- msg
		}
	})

	client := NewClient(Config{Url: url, QueueLimit: 2})
	defer client.Disconnect()

	require.NoError(t, client.Send(TypeJoinBattle, map[string]int{"n": 1}))
	require.NoError(t, client.Send(TypeChatMessage, map[string]int{"n": 2}))
	require.NoError(t, client.Send(TypeForfeit, map[string]int{"n": 3}))
	require.NoError(t, client.Connect(context.Background(), ""))

	first := waitFor(t, frames, 2*time.Second)
	second := waitFor(t, frames, 2*time.Second)
	assert.Equal(t, TypeChatMessage, first.Type, "oldest message dropped")
	assert.Equal(t, TypeForfeit, second.Type)
	select {
	case extra := <-frames:
		if extra.Type != TypeHeartbeat {
			t.Fatalf("unexpected extra frame: %v", extra.Type)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConcurrentSendersAndHeartbeatSerialize(t *testing.T) {
	frames := make(chan Message, 256)
	url := newTestServer(t, func(conn *websocket.Conn) {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			frames <- msg
		}
	})

	// An aggressive heartbeat competes with application sends for the
	// single permitted writer
	client := NewClient(Config{Url: url, HeartbeatInterval: time.Millisecond})
	defer client.Disconnect()
	require.NoError(t, client.Connect(context.Background(), ""))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				assert.NoError(t, client.Send(TypeChatMessage, map[string]int{"n": j}))
			}
		}()
	}
	wg.Wait()

	chats := 0
	deadline := time.After(2 * time.Second)
	for chats < 100 {
		select {
		case msg := <-frames:
			if msg.Type == TypeChatMessage {
				chats++
			}
		case <-deadline:
			t.Fatalf("received %d of 100 chat frames", chats)
		}
	}
}

func TestMalformedFrameEmitsParseError(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		msg, _ := newMessage(TypeBattleStart, nil)
		_ = conn.WriteJSON(msg)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client := NewClient(Config{Url: url})
	defer client.Disconnect()

	parseErrors := make(chan Message, 1)
	started := make(chan Message, 1)
	client.On(EventParseError, func(msg Message) { parseErrors <- msg })
	client.On(string(TypeBattleStart), func(msg Message) { started <- msg })
	require.NoError(t, client.Connect(context.Background(), ""))

	waitFor(t, parseErrors, 2*time.Second)
	// The bad frame never tears the connection down
	waitFor(t, started, 2*time.Second)
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	client := NewClient(Config{
		Url:            "ws://127.0.0.1:1", // nothing listens here
		ReconnectDelay: 5 * time.Millisecond,
		MaxReconnects:  2,
	})
	defer client.Disconnect()

	exhausted := make(chan Message, 1)
	client.On(EventMaxReconnect, func(msg Message) { exhausted <- msg })

	err := client.Connect(context.Background(), "")
	require.Error(t, err)

	waitFor(t, exhausted, 2*time.Second)
	assert.Equal(t, StateDisconnected, client.State())
}

func TestDisconnectIsFullTeardown(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client := NewClient(Config{Url: url})
	require.NoError(t, client.Connect(context.Background(), ""))
	client.Disconnect()
	assert.Equal(t, StateDisconnected, client.State())

	// Sends after teardown queue silently and never error
	require.NoError(t, client.Send(TypeChatMessage, nil))
}

func TestConnectIsIdempotentWhileConnected(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client := NewClient(Config{Url: url})
	defer client.Disconnect()

	require.NoError(t, client.Connect(context.Background(), ""))
	require.NoError(t, client.Connect(context.Background(), ""))
	assert.Equal(t, StateConnected, client.State())
}
