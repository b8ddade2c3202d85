package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialConsole(t *testing.T, console *Console) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(console)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// An operator typing while webhook turns are broadcast must not corrupt the
// connection: both paths write the same socket and the protocol allows only
// one writer at a time.
func TestConsoleConcurrentTypingAndBroadcasts(t *testing.T) {
	log := logger.New(logger.DefaultConfig())
	console := NewConsole(log)

	// large frames so writes overlap rather than complete atomically
	bigText := strings.Repeat("x", 1<<20)
	console.SetTurnHandler(func(_ context.Context, env *models.Envelope) *models.Reply {
		return models.NewReply(env.SenderID, "opening", []string{bigText})
	})

	conn := dialConsole(t, console)

	// drain everything the server sends so its writes never stall
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			err := conn.WriteJSON(consoleInput{SenderID: "op", Text: "hello"})
			if err != nil {
				return
			}
		}
	}()

	env := models.NewTextEnvelope("27820001111", "find a clinic")
	reply := models.NewReply("27820001111", "service", []string{bigText})
	for i := 0; i < 200; i++ {
		console.BroadcastTurn(env, reply)
	}
	wg.Wait()

	// the connection survived the contention: it is still registered and
	// still writable
	console.mu.Lock()
	remaining := len(console.conns)
	console.mu.Unlock()
	require.Equal(t, 1, remaining)

	conn.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not shut down")
	}
}

// Typed frames run through the pipeline as a synthetic sender and the reply
// comes back on the same connection, interleaved with broadcast events.
func TestConsoleTypedTurnAnswered(t *testing.T) {
	log := logger.New(logger.DefaultConfig())
	console := NewConsole(log)

	senders := make(chan string, 1)
	console.SetTurnHandler(func(_ context.Context, env *models.Envelope) *models.Reply {
		senders <- env.SenderID
		return models.NewReply(env.SenderID, "opening", []string{"Welcome back"})
	})

	conn := dialConsole(t, console)
	require.NoError(t, conn.WriteJSON(consoleInput{SenderID: "op", Text: "restart"}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply struct {
		SenderID   string `json:"senderId"`
		TextSingle string `json:"textSingle"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "console:op", <-senders)
	require.Equal(t, "console:op", reply.SenderID)
	require.Equal(t, "Welcome back", reply.TextSingle)
}
