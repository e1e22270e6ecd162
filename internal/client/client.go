// Package client is the participant side of the signaling protocol.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/negotiation"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

var ErrClosed = errors.New("signaling connection closed")

// Client owns one websocket to the signaling server.
type Client struct {
	conn     *websocket.Conn
	log      zerolog.Logger
	incoming chan protocol.Message
	outgoing chan []byte
	done     chan struct{}
	once     sync.Once

	mu      sync.Mutex
	readErr error
}

// Dial connects to serverURL. A dial failure is a SignalingConnectionError.
func Dial(ctx context.Context, serverURL string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, &negotiation.SignalingConnectionError{Op: "dial", Err: err}
	}

	c := &Client{
		conn:     conn,
		log:      log.With().Str("module", "client").Str("server", u.Host).Logger(),
		incoming: make(chan protocol.Message, sendBuffer),
		outgoing: make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

// Send queues msg for the server. It implements negotiation.Signaler.
func (c *Client) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return &negotiation.SignalingConnectionError{Op: "send", Err: ErrClosed}
	default:
	}
	select {
	case c.outgoing <- data:
		return nil
	case <-c.done:
		return &negotiation.SignalingConnectionError{Op: "send", Err: ErrClosed}
	}
}

// Incoming is closed when the connection ends.
func (c *Client) Incoming() <-chan protocol.Message { return c.incoming }

// Err is the read error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		_ = c.conn.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read error")
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed message")
			continue
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("write error")
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
