package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"nebula/internal/identity"
	"nebula/internal/protocol"
	"nebula/internal/socket"
)

// Transport is the bidirectional message connection under the client.
// *socket.Client is the production implementation.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsOpen() bool
	Send(protocol.Payload) bool
}

// DialFunc builds a transport wired to the given callbacks. Injected so
// tests can substitute an in-process transport.
type DialFunc func(cb socket.Callbacks) Transport

// Dialer is the production DialFunc over a lazily resolved gateway URL.
func Dialer(url func() string, opts ...socket.Option) DialFunc {
	return func(cb socket.Callbacks) Transport {
		return socket.NewClient(url, cb, opts...)
	}
}

// DispatchHandler observes every application event pushed by the gateway.
type DispatchHandler func(*protocol.Event)

// Client owns the authentication handshake, the connection status machine
// and inbound payload demultiplexing. Dispatch listeners are registered for
// the lifetime of the client and invoked synchronously in registration
// order.
type Client struct {
	identity identity.Provider
	dial     DialFunc
	log      *Log

	mu        sync.Mutex
	status    Status
	note      string
	token     string
	transport Transport
	handlers  []DispatchHandler
	epoch     uint64
}

func NewClient(p identity.Provider, dial DialFunc) *Client {
	return &Client{
		identity: p,
		dial:     dial,
		log:      &Log{},
		status:   StatusDisconnected,
		note:     "Idle",
	}
}

// Connect runs the handshake up to the connected state. Failures are
// surfaced through status and note, never returned; callers observe the
// terminal phase once Connect returns.
func (c *Client) Connect(ctx context.Context) {
	if !c.identity.Authenticated() {
		c.SetStatus(StatusError, "Please sign in before connecting")
		return
	}

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	c.SetStatus(StatusConnecting, "Fetching access token...")

	token, err := c.identity.Token(ctx)
	if err != nil {
		c.SetStatus(StatusError, "Token fetch failed: "+err.Error())
		return
	}

	c.mu.Lock()
	// A disconnect issued while the token fetch was in flight invalidates
	// this attempt; do not open a transport for a stale session.
	if epoch != c.epoch {
		c.mu.Unlock()
		slog.Info("gateway: dropping stale connect")
		c.log.Push("< STALE CONNECT dropped")
		return
	}
	c.token = token
	c.note = "Connecting to gateway..."
	t := c.dial(socket.Callbacks{
		OnOpen:    c.handleOpen,
		OnMessage: c.handlePayload,
		OnClose:   c.handleClose,
		OnError:   c.handleError,
	})
	c.transport = t
	c.mu.Unlock()
	c.log.Push("< AUTH token ok")

	if err := t.Connect(ctx); err != nil {
		slog.Error("gateway: dial", "error", err)
		c.SetStatus(StatusError, "Socket error")
	}
}

// Disconnect closes the transport and returns to disconnected, whatever
// the current state. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.epoch++
	t := c.transport
	c.transport = nil
	c.mu.Unlock()

	if t != nil {
		t.Disconnect()
	}
	c.SetStatus(StatusDisconnected, "Disconnected")
	c.log.Push("< DISCONNECT")
}

// Close tears down the transport on unmount without reporting a status
// transition. Required even when Connect never completed, so no open
// connection is left dangling.
func (c *Client) Close() {
	c.mu.Lock()
	c.epoch++
	t := c.transport
	c.transport = nil
	c.mu.Unlock()

	if t != nil {
		t.Disconnect()
	}
}

// Send logs and transmits one outbound frame. Returns false when the
// transport is not open.
func (c *Client) Send(p protocol.Payload) bool {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()

	if t == nil || !t.IsOpen() {
		return false
	}
	c.log.Push("> " + p.Op)
	return t.Send(p)
}

// OnDispatch registers a listener for the lifetime of the client.
func (c *Client) OnDispatch(h DispatchHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) StatusNote() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.note
}

func (c *Client) StatusLabel() string {
	return c.Status().Label()
}

// SetStatus is exported because the ready and error phases are entered by
// application logic, not by the gateway client itself.
func (c *Client) SetStatus(s Status, note string) {
	c.mu.Lock()
	c.status = s
	c.note = note
	c.mu.Unlock()
	slog.Debug("gateway: status", "status", string(s), "note", note)
}

func (c *Client) SetStatusNote(note string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.note = note
}

func (c *Client) Log() *Log {
	return c.log
}

func (c *Client) handleOpen() {
	c.SetStatus(StatusConnected, "Identifying...")
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return
	}
	c.Send(protocol.NewIdentify(token))
}

func (c *Client) handlePayload(p protocol.Payload) {
	switch p.Op {
	case protocol.OpHello:
		c.log.Push("< " + p.Op)
		var h protocol.Hello
		if err := json.Unmarshal(p.D, &h); err != nil {
			slog.Error("gateway: decode Hello", "error", err)
			return
		}
		c.SetStatusNote(fmt.Sprintf("Heartbeat %dms", h.HeartbeatIntervalMs))

	case protocol.OpDispatch:
		ev, err := protocol.DecodeDispatch(p.D)
		if err != nil {
			var unknown *protocol.ErrUnknownEvent
			if errors.As(err, &unknown) {
				slog.Debug("gateway: ignoring unknown dispatch event", "t", string(unknown.T))
			} else {
				slog.Error("gateway: decode dispatch", "error", err)
			}
			return
		}
		c.log.Push("< DISPATCH " + string(ev.Type))

		c.mu.Lock()
		handlers := make([]DispatchHandler, len(c.handlers))
		copy(handlers, c.handlers)
		c.mu.Unlock()
		for _, h := range handlers {
			h(ev)
		}

	default:
		slog.Debug("gateway: ignoring unknown op", "op", p.Op)
	}
}

func (c *Client) handleClose() {
	c.SetStatus(StatusDisconnected, "Socket closed")
}

func (c *Client) handleError(err error) {
	slog.Error("gateway: socket error", "error", err)
	c.SetStatus(StatusError, "Socket error")
}
