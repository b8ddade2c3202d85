// Package ws is the operator console: a websocket surface that streams live
// turn summaries and lets an operator type messages through the full
// routing pipeline as a synthetic sender.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	// consoleSender prefixes synthetic senders so their turns are
	// distinguishable in the turn log.
	consoleSender = "console"
)

// TurnEvent is one routed turn as shown on the console. Message text is
// included; operators are inside the trust boundary.
type TurnEvent struct {
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Domain    string    `json:"domain"`
	Reply     string    `json:"reply"`
	HasMenu   bool      `json:"hasMenu"`
	Timestamp time.Time `json:"timestamp"`
}

// consoleInput is an operator-typed message to run through the pipeline.
type consoleInput struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

// TurnHandler runs one synthetic turn. Wired after construction because the
// console and the pipeline are built by the same container.
type TurnHandler func(ctx context.Context, env *models.Envelope) *models.Reply

// consoleConn wraps a connection with a write mutex. The websocket protocol
// allows only one concurrent writer per connection, and both the reader
// goroutine (typed replies) and the webhook handler (broadcasts) write here.
type consoleConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (cc *consoleConn) writeJSON(v any) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cc.conn.WriteJSON(v)
}

// Console fans turn events out to every connected operator. Slow or dead
// connections are dropped rather than allowed to stall the reply path.
type Console struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu      sync.Mutex
	conns   map[*consoleConn]struct{}
	handler TurnHandler
}

func NewConsole(log *logger.Logger) *Console {
	return &Console{
		// auth happens in the route middleware before the upgrade
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:   log,
		conns: make(map[*consoleConn]struct{}),
	}
}

// SetTurnHandler wires the pipeline entry used for operator-typed messages.
func (c *Console) SetTurnHandler(handler TurnHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// ServeHTTP upgrades the connection and holds it open until the operator
// disconnects. Text frames are treated as synthetic turns.
func (c *Console) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn("console upgrade failed", "error", err)
		return
	}

	cc := &consoleConn{conn: conn}
	c.mu.Lock()
	c.conns[cc] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.conns, cc)
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleInput(r.Context(), cc, data)
	}
}

// handleInput runs one operator-typed message through the pipeline and
// answers on the same connection.
func (c *Console) handleInput(ctx context.Context, cc *consoleConn, data []byte) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return
	}

	var input consoleInput
	if err := json.Unmarshal(data, &input); err != nil || input.Text == "" {
		c.log.Debug("ignoring unparseable console frame")
		return
	}
	senderID := consoleSender
	if input.SenderID != "" {
		senderID = consoleSender + ":" + input.SenderID
	}

	reply := handler(ctx, models.NewTextEnvelope(senderID, input.Text))
	if reply == nil {
		return
	}

	if err := cc.writeJSON(reply); err != nil {
		c.log.Warn("console reply write failed", "error", err)
	}
}

// BroadcastTurn publishes one routed turn to every connected console. Writes
// happen outside the registry lock so one stalled connection cannot hold up
// registration or the other consoles.
func (c *Console) BroadcastTurn(env *models.Envelope, reply *models.Reply) {
	event := TurnEvent{
		SenderID:  env.SenderID,
		Message:   env.RawContent,
		Domain:    reply.Domain,
		Reply:     reply.TextSingle(),
		HasMenu:   reply.HasMenu(),
		Timestamp: time.Now().UTC(),
	}

	c.mu.Lock()
	conns := make([]*consoleConn, 0, len(c.conns))
	for cc := range c.conns {
		conns = append(conns, cc)
	}
	c.mu.Unlock()

	var failed []*consoleConn
	for _, cc := range conns {
		if err := cc.writeJSON(event); err != nil {
			failed = append(failed, cc)
		}
	}
	if len(failed) == 0 {
		return
	}

	c.mu.Lock()
	for _, cc := range failed {
		delete(c.conns, cc)
		cc.conn.Close()
	}
	c.mu.Unlock()
}
