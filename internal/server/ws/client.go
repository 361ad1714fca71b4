// Package ws serves the duplex session channel over WebSocket: one tagged
// JSON frame per event in both directions.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/paintroom/paintroom/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// handshakeWait bounds how long a connection may sit idle before its
	// first (join) frame.
	handshakeWait = 15 * time.Second
	maxFrameBytes = 1 << 20
	sendBuffer    = 256
)

// client owns one WebSocket connection. Send never blocks: events go through
// a buffered channel drained by the write pump, and a consumer that cannot
// keep up is disconnected rather than allowed to stall the session.
type client struct {
	conn *websocket.Conn
	log  *zap.Logger

	send chan protocol.ServerEvent
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, log *zap.Logger) *client {
	return &client{
		conn: conn,
		log:  log,
		send: make(chan protocol.ServerEvent, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues an event for delivery. Called from session broadcasts, so it
// must return immediately.
func (c *client) Send(ev protocol.ServerEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		c.log.Warn("slow consumer, dropping connection")
		c.close()
	}
}

// close releases the connection once; safe from any goroutine.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump drains the outbox and keeps the connection alive with pings.
// It is the only goroutine writing to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			frame, err := protocol.EncodeServer(ev)
			if err != nil {
				c.log.Error("encode frame", zap.Error(err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
