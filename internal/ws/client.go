package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/studyarena/pkarena/pkg/logging"
	"go.uber.org/zap"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Credentials supplies the user id and token carried as query
// parameters on the connection URL.
type Credentials func() (userId, token string)

type Config struct {
	Url               string
	Credentials       Credentials
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	MaxReconnects     int
	QueueLimit        int
}

type Handler func(Message)

// Client maintains one logical connection to the battle/notification
// channel: auto-reconnect with bounded attempts, periodic heartbeat,
// and a bounded outbound queue flushed on reconnect.
type Client struct {
	cfg Config

	// writeMu serializes frame writes; gorilla supports one writer at a time
	writeMu sync.Mutex

	mu            sync.Mutex
	state         State
	conn          *websocket.Conn
	battleId      string
	queue         []Message
	listeners     map[string]map[int]Handler
	nextListener  int
	attempts      int
	stopHeartbeat chan struct{}
	reconnect     *time.Timer
	closed        bool
}

func NewClient(cfg Config) *Client {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.QueueLimit == 0 {
		cfg.QueueLimit = 64
	}
	return &Client{
		cfg:       cfg,
		state:     StateDisconnected,
		listeners: make(map[string]map[int]Handler),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers a handler for a message type or client event. The
// returned function unregisters it. EventMessage receives everything.
func (c *Client) On(event string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]Handler)
	}
	id := c.nextListener
	c.nextListener++
	c.listeners[event][id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[event], id)
	}
}

// Connect opens the channel, optionally scoped to one battle.
func (c *Client) Connect(ctx context.Context, battleId string) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.battleId = battleId
	c.closed = false
	c.attempts = 0
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		c.scheduleReconnect()
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("failed to dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	stop := make(chan struct{})
	c.stopHeartbeat = stop
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.heartbeatLoop(stop)

	// Flush messages queued while disconnected, in FIFO order
	for _, msg := range pending {
		if err := c.write(msg); err != nil {
			logging.Warn("failed to flush queued message",
				zap.String("type", string(msg.Type)),
				zap.Error(err),
			)
		}
	}
	logging.Info("websocket connected", zap.String("battle_id", c.battleId))
	return nil
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.Url)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	query := u.Query()
	if c.cfg.Credentials != nil {
		userId, token := c.cfg.Credentials()
		query.Set("userId", userId)
		query.Set("token", token)
	}
	c.mu.Lock()
	if c.battleId != "" {
		query.Set("battleId", c.battleId)
	}
	c.mu.Unlock()
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// Send writes immediately when connected, otherwise queues for the
// next flush. The queue is bounded; the oldest message is dropped
// when it overflows.
func (c *Client) Send(msgType MessageType, data interface{}) error {
	msg, err := newMessage(msgType, data)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		if len(c.queue) >= c.cfg.QueueLimit {
			dropped := c.queue[0]
			c.queue = c.queue[1:]
			logging.Warn("outbound queue full, dropping oldest",
				zap.String("type", string(dropped.Type)),
			)
		}
		c.queue = append(c.queue, msg)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.write(msg)
}

func (c *Client) write(msg Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// Disconnect is a full teardown, not a pause: heartbeat stopped,
// pending reconnect cancelled, listeners and queue cleared.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.queue = nil
	c.listeners = make(map[string]map[int]Handler)
	c.state = StateDisconnected
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		conn.Close()
	}
	logging.Info("websocket disconnected")
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Malformed frames are reported, never thrown at callers
			c.emitParseError(err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	c.emit(string(msg.Type), msg)
	c.emit(EventMessage, msg)
}

func (c *Client) emit(event string, msg Message) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.listeners[event]))
	for _, h := range c.listeners[event] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

func (c *Client) emitParseError(cause error) {
	payload, _ := json.Marshal(map[string]string{"error": cause.Error()})
	c.emit(EventParseError, Message{
		Type:      MessageType(EventParseError),
		Data:      payload,
		Timestamp: time.Now(),
	})
}

func (c *Client) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A stale read loop from a connection already torn down
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	if c.closed || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	logging.Warn("websocket closed unexpectedly", zap.Error(err))
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.attempts++
	if c.attempts > c.cfg.MaxReconnects {
		c.state = StateDisconnected
		c.mu.Unlock()
		logging.Error("reconnect attempts exhausted",
			zap.Int("max_reconnects", c.cfg.MaxReconnects),
		)
		c.emit(EventMaxReconnect, Message{
			Type:      MessageType(EventMaxReconnect),
			Timestamp: time.Now(),
		})
		return
	}
	attempt := c.attempts
	c.state = StateReconnecting
	c.reconnect = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()
		if err := c.dial(context.Background()); err != nil {
			logging.Warn("reconnect failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()
	logging.Info("reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.String("delay", c.cfg.ReconnectDelay.String()),
	)
}

func (c *Client) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Send(TypeHeartbeat, nil); err != nil {
				logging.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}
