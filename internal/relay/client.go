/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Seednode/trivia/internal/room"
)

// Conn is one participant's ordered, bidirectional message stream. ReadEnvelope
// is only called from one goroutine and WriteEnvelope from another; Close may
// be called from anywhere, any number of times.
type Conn interface {
	ReadEnvelope() (Envelope, error)
	WriteEnvelope(Envelope) error
	Close() error
}

// pinger is implemented by transports that need periodic keepalive frames.
type pinger interface {
	Ping() error
}

// Session is bound to a client once, when it takes a seat, and never changes.
type Session struct {
	RoomCode    string
	Role        room.Role
	DisplayName string
}

// Client is a connected participant.
type Client struct {
	id     string
	remote string
	conn   Conn
	send   chan Envelope
	done   chan struct{}
	once   sync.Once

	session atomic.Pointer[Session]
	hub     atomic.Pointer[hub]
}

func newClient(id, remote string, conn Conn, buffer int) *Client {
	return &Client{
		id:     id,
		remote: remote,
		conn:   conn,
		send:   make(chan Envelope, buffer),
		done:   make(chan struct{}),
	}
}

// Session returns the client's seat binding, or nil before it has joined.
func (c *Client) Session() *Session {
	return c.session.Load()
}

// enqueue queues env for delivery. A client whose queue is full is too slow
// to keep up with its room and is disconnected.
func (c *Client) enqueue(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump delivers queued frames until the client is closed, then flushes
// whatever is still queued and closes the connection.
func (c *Client) writePump(pingEvery time.Duration) {
	defer c.conn.Close()

	var (
		tick <-chan time.Time
		ping pinger
	)
	if p, ok := c.conn.(pinger); ok && pingEvery > 0 {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		tick = ticker.C
		ping = p
	}

	for {
		select {
		case env := <-c.send:
			if err := c.conn.WriteEnvelope(env); err != nil {
				c.close()
				return
			}
		case <-tick:
			if err := ping.Ping(); err != nil {
				c.close()
				return
			}
		case <-c.done:
			for {
				select {
				case env := <-c.send:
					if err := c.conn.WriteEnvelope(env); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}
