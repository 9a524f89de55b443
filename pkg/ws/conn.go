// Package ws is the WebSocket transport adapter: JSON framing, heartbeat,
// idle timeout and backpressure. Outbound frames are written in the order
// they are enqueued by a given producer.
package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"collabd/pkg/logger"
	"collabd/pkg/models"
	"collabd/pkg/telemetry"
)

// Close codes used by the realtime core.
const (
	CloseUnknownEvent    = 4400
	CloseUnauthenticated = 4403
)

const writeWait = 10 * time.Second

var errConnClosed = errors.New("connection closed")
var errBackpressure = errors.New("outbound queue saturated")

// Conn owns one client socket. It implements broker.Subscriber; Deliver
// never blocks: when the outbound queue is full, TYPING frames are dropped
// first and anything else kills the peer with 1011.
type Conn struct {
	sock    *websocket.Conn
	channel string
	userID  int64

	out        chan any
	done       chan struct{}
	closeOnce  sync.Once
	pingPeriod time.Duration
	idle       time.Duration
}

func newConn(sock *websocket.Conn, userID int64, channel string, queue int, pingPeriod, idle time.Duration) *Conn {
	return &Conn{
		sock:       sock,
		channel:    channel,
		userID:     userID,
		out:        make(chan any, queue),
		done:       make(chan struct{}),
		pingPeriod: pingPeriod,
		idle:       idle,
	}
}

// Deliver enqueues a broker frame for writing.
func (c *Conn) Deliver(f models.Frame) error {
	return c.enqueue(f)
}

// DeliverError enqueues an {"error": ...} reply frame.
func (c *Conn) DeliverError(msg string) {
	_ = c.enqueue(models.ErrorFrame{Error: msg})
}

func (c *Conn) enqueue(v any) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.out <- v:
		return nil
	default:
	}
	// saturated: shed TYPING, kill otherwise
	if f, ok := v.(models.Frame); ok && f.Type == models.EventTyping {
		telemetry.TypingDropped.Inc()
		return nil
	}
	telemetry.BackpressureKills.Inc()
	logger.Warn("backpressure_kill", "channel", c.channel, "user", c.userID)
	c.close(websocket.CloseInternalServerErr, "outbound queue saturated")
	return errBackpressure
}

// writePump drains the outbound queue and keeps the heartbeat going. It
// exits when the connection is closed.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case v := <-c.out:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(v); err != nil {
				logger.Debug("write_failed", "channel", c.channel, "error", err)
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
			telemetry.FramesOut.Inc()
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			return
		}
	}
}

// close sends a close frame with the given code and tears the socket down.
// Safe to call more than once.
func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.sock.WriteMessage(websocket.CloseMessage, msg)
		_ = c.sock.Close()
		close(c.done)
	})
}
