package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("websocket not connected")

type Handler func(Envelope)

// Client owns one websocket connection to a Hub on behalf of a user. Inbound
// envelopes fan out to every subscribed handler.
type Client struct {
	url    string
	userID string
	dialer *websocket.Dialer
	header http.Header
	logger *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	handlers map[int]Handler
	nextID   int

	writeMu sync.Mutex
}

type ClientOption func(*Client)

func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) { c.dialer = d }
}

func WithHeader(h http.Header) ClientOption {
	return func(c *Client) { c.header = h }
}

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient prepares a client for url. userID, when set, is announced with a
// self-registration envelope on every connect.
func NewClient(url, userID string, opts ...ClientOption) *Client {
	c := &Client{
		url:      url,
		userID:   userID,
		dialer:   websocket.DefaultDialer,
		logger:   zap.NewNop(),
		handlers: make(map[int]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the hub. Calling it on a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()
	go c.readLoop(conn, done)

	if c.userID != "" {
		if err := c.Send(TypeInvite, InviteContent{TargetID: SelfRegistration, HostID: c.userID}); err != nil {
			_ = c.Close()
			return err
		}
	}
	return nil
}

// Close closes the connection and waits for the read loop to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := conn.Close()
	<-done
	return err
}

// Reconnect drops any current connection and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	if err := c.Close(); err != nil {
		c.logger.Debug("close before reconnect", zap.Error(err))
	}
	return c.Connect(ctx)
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Subscribe registers h for every inbound envelope and returns a func that removes it.
func (c *Client) Subscribe(h Handler) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = h
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

// Send writes an envelope of type t.
func (c *Client) Send(t MessageType, content any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	env, err := NewEnvelope(t, content)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
		close(done)
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket disconnected", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		if string(data) == Ack {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Debug("ignoring non-json frame", zap.ByteString("frame", data))
			continue
		}
		c.mu.Lock()
		handlers := make([]Handler, 0, len(c.handlers))
		for _, h := range c.handlers {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(env)
		}
	}
}
