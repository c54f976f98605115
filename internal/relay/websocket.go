/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 64 << 10
	pongWaitFactor = 2
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn carries envelopes as JSON text frames.
type wsConn struct {
	conn     *websocket.Conn
	pongWait time.Duration
}

func newWSConn(conn *websocket.Conn, pingEvery time.Duration) *wsConn {
	c := &wsConn{conn: conn}

	conn.SetReadLimit(maxFrameSize)

	if pingEvery > 0 {
		c.pongWait = pingEvery * pongWaitFactor
		_ = conn.SetReadDeadline(time.Now().Add(c.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.pongWait))
		})
	}

	return c
}

func (c *wsConn) ReadEnvelope() (Envelope, error) {
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	if c.pongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
	return env, nil
}

func (c *wsConn) WriteEnvelope(env Envelope) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(env)
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// serveWS upgrades the request and serves the connection until it closes.
func (s *Server) serveWS(remote func(*http.Request) string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug("websocket upgrade failed", zap.String("remote", remote(r)), zap.Error(err))
			return
		}

		s.Attach(newWSConn(conn, s.opts.PingInterval), remote(r))
	}
}
