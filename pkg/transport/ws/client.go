// Package ws adapts the engagement service boundary onto a binary
// websocket protocol. One connection multiplexes concurrent service
// calls by request id and receives server-pushed engagement events.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tessera-dev/tessera/pkg/protocol"
	"github.com/tessera-dev/tessera/pkg/readmark"
	"github.com/tessera-dev/tessera/pkg/toggle"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// ErrClosed reports a call on a connection that has been closed.
var ErrClosed = errors.New("ws: connection closed")

// NotificationHandler receives server-pushed engagement events. Handlers
// run on the read loop goroutine and must not block.
type NotificationHandler func(n *protocol.Notification)

// Client is a websocket connection to the engagement server. It
// implements toggle.Service and readmark.Service; calls from multiple
// goroutines are multiplexed over the single connection.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
	onNote NotificationHandler

	writeMu sync.Mutex

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan *protocol.Response
	closed  bool

	done chan struct{}
}

var (
	_ toggle.Service   = (*Client)(nil)
	_ readmark.Service = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for connection-level events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithNotificationHandler sets the handler for server-pushed events.
func WithNotificationHandler(h NotificationHandler) Option {
	return func(c *Client) { c.onNote = h }
}

// Dial connects to the engagement server at url (ws:// or wss://) and
// starts the read loop.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultDialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		logger:  slog.Default(),
		pending: make(map[uint64]chan *protocol.Response),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	return c, nil
}

// Close tears down the connection. Pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	close(c.done)
	return c.conn.Close()
}

// Activate turns the toggle on for entityID.
func (c *Client) Activate(ctx context.Context, entityID string) (toggle.Status, error) {
	return c.toggleCall(ctx, protocol.OpActivate, entityID)
}

// Deactivate turns the toggle off for entityID.
func (c *Client) Deactivate(ctx context.Context, entityID string) (toggle.Status, error) {
	return c.toggleCall(ctx, protocol.OpDeactivate, entityID)
}

// Status fetches the authoritative toggle state for entityID.
func (c *Client) Status(ctx context.Context, entityID string) (toggle.Status, error) {
	return c.toggleCall(ctx, protocol.OpStatus, entityID)
}

// MarkRead reports itemIDs as read and returns how many the server marked.
func (c *Client) MarkRead(ctx context.Context, itemIDs []string) (int, error) {
	resp, err := c.roundTrip(ctx, &protocol.Request{
		Op:      protocol.OpMarkRead,
		ItemIDs: itemIDs,
	})
	if err != nil {
		return 0, err
	}
	return int(resp.Marked), nil
}

func (c *Client) toggleCall(ctx context.Context, op protocol.Op, entityID string) (toggle.Status, error) {
	resp, err := c.roundTrip(ctx, &protocol.Request{Op: op, EntityID: entityID})
	if err != nil {
		return toggle.Status{}, err
	}
	return toggle.Status{Active: resp.Active, Count: int(resp.Count)}, nil
}

// roundTrip sends one request frame and waits for its correlated response.
func (c *Client) roundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	req.ID = c.nextID.Add(1)

	ch := make(chan *protocol.Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	data, err := protocol.EncodeFrame(&protocol.Frame{
		Type:    protocol.FrameRequest,
		Payload: protocol.EncodeRequest(req),
	})
	if err != nil {
		return nil, err
	}
	if err := c.writeMessage(data); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if !resp.OK {
			return nil, fmt.Errorf("ws: %s: %s", req.Op, resp.Err)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) writeMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

// readLoop dispatches inbound frames until the connection dies.
func (c *Client) readLoop() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("websocket read failed", "error", err)
				}
			}
			return
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		switch frame.Type {
		case protocol.FrameResponse:
			c.handleResponse(frame.Payload)
		case protocol.FrameNotify:
			c.handleNotification(frame.Payload)
		case protocol.FramePing:
			// Server liveness probe, nothing to do.
		default:
			c.logger.Warn("dropping unexpected frame", "type", frame.Type.String())
		}
	}
}

func (c *Client) handleResponse(payload []byte) {
	resp, err := protocol.DecodeResponse(payload)
	if err != nil {
		c.logger.Warn("dropping malformed response", "error", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown request", "id", resp.ID)
		return
	}
	ch <- resp
}

func (c *Client) handleNotification(payload []byte) {
	if c.onNote == nil {
		return
	}
	n, err := protocol.DecodeNotification(payload)
	if err != nil {
		c.logger.Warn("dropping malformed notification", "error", err)
		return
	}
	c.onNote(n)
}
