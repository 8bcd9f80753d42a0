package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBufSize    = 256
)

// Client is one live socket. It starts unidentified and becomes identified
// once a setup event for its authenticated user arrives.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	logger *zap.Logger

	// authUserID is the identity proven by the handshake token.
	authUserID uuid.UUID

	mu         sync.RWMutex
	userID     uuid.UUID
	identified bool

	send   chan []byte
	done   chan struct{}
	closed chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce   sync.Once
	closeStatus websocket.StatusCode
	closeReason string
}

func NewClient(hub *Hub, conn *websocket.Conn, authUserID uuid.UUID) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Client{
		id:          id,
		hub:         hub,
		conn:        conn,
		logger:      hub.logger.With(zap.String("conn_id", id), zap.String("user_id", authUserID.String())),
		authUserID:  authUserID,
		send:        make(chan []byte, sendBufSize),
		done:        make(chan struct{}),
		closed:      make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		closeStatus: websocket.StatusNormalClosure,
	}
}

// UserID returns the identified user, or false before setup.
func (c *Client) UserID() (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.identified
}

// identify moves the client to the identified state. There is no way back
// short of disconnecting, so a second call fails.
func (c *Client) identify(userID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identified {
		return false
	}
	c.userID = userID
	c.identified = true
	return true
}

// enqueue hands data to the write pump without blocking. It reports false
// when the client is closed or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops both pumps. The socket itself is closed by the write pump.
func (c *Client) Close() {
	c.closeWith(websocket.StatusNormalClosure, "")
}

// closeWith records the close status and signals the write pump. The write
// pump cancels the read context once the close frame is out.
func (c *Client) closeWith(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeStatus = status
		c.closeReason = reason
		close(c.done)
	})
}

// closing reports whether closeWith has run.
func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ReadPump reads frames until the socket fails or the client is closed.
// Each frame is decoded once and handed to the hub in receipt order.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			switch {
			case c.closing():
			case websocket.CloseStatus(err) != -1:
				c.logger.Debug("ws: client disconnected", zap.Int("status", int(websocket.CloseStatus(err))))
			case errors.Is(err, context.Canceled):
			default:
				c.logger.Info("ws: read error", zap.Error(err))
			}
			return
		}

		if typ != websocket.MessageText {
			c.logger.Warn("ws: dropping non-text frame")
			continue
		}

		c.handleFrame(data)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(c.closeStatus, c.closeReason)
		c.cancel()
		close(c.closed)
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Info("ws: write error", zap.Error(err))
				c.Close()
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Info("ws: ping error", zap.Error(err))
				c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleFrame decodes one inbound frame. Bad frames are logged and dropped;
// the connection stays open.
func (c *Client) handleFrame(data []byte) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Warn("ws: dropping undecodable frame", zap.Error(err))
		return
	}

	inbound, err := DecodeInbound(&evt)
	if err != nil {
		c.logger.Warn("ws: dropping event", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	c.hub.Dispatch(c, inbound)
}
