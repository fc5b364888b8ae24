package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// timeout for writing to the websocket connection.
	writeWait = 10 * time.Second

	// how long the server waits for a pong.
	pongWait = 60 * time.Second

	// ping cadence, inside pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maximum size in bytes of an inbound message.
	maxMessageSize = 8192

	sendBuffer = 64
)

// Client is the websocket transport of one mount. It implements Emitter.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func NewClient(conn *websocket.Conn, logger zerolog.Logger) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Emit queues e for delivery. Events are dropped once the client is closed
// or when the queue is full.
func (c *Client) Emit(e Event) {
	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(e.Type)).Msg("marshal event")
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- raw:
	case <-c.done:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Str("event", string(e.Type)).Msg("client send queue full, dropping event")
	}
}

// ReadPump feeds inbound messages to handle until the connection fails.
func (c *Client) ReadPump(handle func([]byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		handle(msg)
	}
}

// WritePump drains the send queue and keeps the connection alive with
// pings. It returns after Close.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close websocket")
		}
	}()

	for {
		select {
		case msg := <-c.send:
			if !c.write(websocket.TextMessage, msg) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if !c.write(websocket.TextMessage, msg) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("set write deadline")
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Msg("write websocket message")
		return false
	}
	return true
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}
