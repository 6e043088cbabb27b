package realtime

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrSendBufferFull is returned by Push when the client's outbound queue is
// saturated. The payload is dropped; the durable notification row remains.
var ErrSendBufferFull = errors.New("realtime: send buffer full")

var errClientClosed = errors.New("realtime: client closed")

const maxInboundMessageSize = 1024

// Client wraps one websocket connection. Writes go through a buffered channel
// drained by a single writer goroutine, so Push never touches the socket
// directly.
type Client struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *zap.Logger

	writeTimeout time.Duration
	pingInterval time.Duration
}

// NewClient builds a client around an upgraded connection.
func NewClient(userID int64, conn *websocket.Conn, sendBuffer int, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		userID:       userID,
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// Push queues a payload for delivery. It never blocks: a full buffer or a
// closed client drops the payload and reports why.
func (c *Client) Push(payload []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run drives the read and write pumps and unregisters the client from the
// hub when the connection dies, whichever pump notices first.
func (c *Client) Run(hub *Hub) {
	go c.writePump()
	c.readPump()

	close(c.done)
	hub.Unregister(c)
	_ = c.conn.Close()
}

// readPump consumes inbound frames. Clients do not send application data
// over this channel; reading only services pongs and detects closure.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxInboundMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pingInterval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pingInterval * 2))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read ended", zap.Error(err), zap.Int64("user_id", c.userID))
			}
			return
		}
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err), zap.Int64("user_id", c.userID))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
