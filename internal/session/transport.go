package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/esub/esub-go/internal/version"
)

const (
	defaultHandshakeTimeout = 10 * time.Second

	// probeWriteWait bounds a single control-frame write so a stuck
	// connection cannot wedge the prober.
	probeWriteWait = 5 * time.Second
)

// Conn is one duplex message-oriented connection. Send and Probe may be
// called from different goroutines; writes are serialized internally.
// Receive is only ever called by the session loop.
type Conn interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Probe() error
	Close() error
}

// Dialer opens duplex connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials esub duplex endpoints over websocket.
type WebsocketDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		header: http.Header{
			"User-Agent": []string{version.UserAgent()},
		},
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %v (status %d)", ErrConnection, url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, url, err)
	}
	// No read limit: payload size is unbounded by protocol contract.
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return mapWireError("send", err)
	}
	return nil
}

func (c *wsConn) Receive() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, mapWireError("receive", err)
	}
	return data, nil
}

// Probe writes an unsolicited pong control frame. WriteControl is safe to
// call concurrently with the session task's writes, so no lock is taken
// here. Failure means the connection is already down; the concurrent
// receive reports that.
func (c *wsConn) Probe() error {
	return c.ws.WriteControl(websocket.PongMessage, nil, time.Now().Add(probeWriteWait))
}

// Close is idempotent and must never wait on the write lock: the session
// task may be blocked inside Send when the driver force-closes on timeout.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(probeWriteWait),
		)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func mapWireError(op string, err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrConnectionClosed
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %s: %v", ErrConnection, op, err)
}
