package socket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nebula/internal/protocol"
)

// Callbacks are invoked as the underlying connection transitions. OnMessage
// receives frames in delivery order, one at a time.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(protocol.Payload)
	OnClose   func()
	OnError   func(error)
}

// Client owns a single websocket connection to the gateway. The URL is
// resolved lazily at dial time so it can depend on live state. Calling
// Connect while a connection exists replaces it; there is no pooling.
type Client struct {
	url func() string
	ser Serializer
	cb  Callbacks

	mu      sync.Mutex
	writeMx sync.Mutex
	conn    *websocket.Conn
	closed  bool
}

type Option func(*Client)

func WithSerializer(s Serializer) Option {
	return func(c *Client) { c.ser = s }
}

func NewClient(url func() string, cb Callbacks, opts ...Option) *Client {
	c := &Client{
		url: url,
		ser: &JSONSerializer{},
		cb:  cb,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if c.cb.OnOpen != nil {
		c.cb.OnOpen()
	}
	go c.readLoop(conn)
	return nil
}

// Disconnect closes the active connection. Safe to call when none is open.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.closed = true
	c.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()
}

// IsOpen reports whether a Send would currently succeed.
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// Send serializes and transmits one payload. Returns false when no
// connection is open or the write fails.
func (c *Client) Send(p protocol.Payload) bool {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if conn == nil || closed {
		return false
	}
	data, err := c.ser.Serialize(p)
	if err != nil {
		slog.Error("socket: serialize payload", "op", p.Op, "error", err)
		return false
	}

	c.writeMx.Lock()
	defer c.writeMx.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("socket: write payload", "op", p.Op, "error", err)
		return false
	}
	return true
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			wasClosed := c.closed
			if current {
				c.conn = nil
			}
			c.mu.Unlock()

			// A replaced connection's loop exits silently.
			if !current {
				return
			}
			if wasClosed || websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if c.cb.OnClose != nil {
					c.cb.OnClose()
				}
			} else if c.cb.OnError != nil {
				c.cb.OnError(err)
			}
			return
		}

		var p protocol.Payload
		if err := c.ser.Deserialize(data, &p); err != nil {
			slog.Error("socket: drop malformed frame", "error", err)
			continue
		}
		if c.cb.OnMessage != nil {
			c.cb.OnMessage(p)
		}
	}
}
