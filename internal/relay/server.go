/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package relay maps inbound named events from connected participants onto
// session registry operations and fans the results out to every connection
// in the affected room.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Seednode/trivia/internal/cards"
	"github.com/Seednode/trivia/internal/room"
)

// Options tunes the relay.
type Options struct {
	// IdleTimeout is how long a room may go without activity before the
	// sweeper removes it. Zero disables sweeping.
	IdleTimeout time.Duration
	// SweepInterval is how often idle rooms are looked for.
	SweepInterval time.Duration
	// TurnTimeout, when positive, notifies a room when a rolled turn has not
	// been closed by the host in time.
	TurnTimeout time.Duration
	// ChatLimit messages are allowed per sender in any ChatWindow.
	ChatLimit  int
	ChatWindow time.Duration
	// MaxMessage is the longest chat message, in characters.
	MaxMessage int
	// SendBuffer is the per-client outbound queue length.
	SendBuffer int
	// PingInterval is how often keepalive frames are sent on transports that
	// need them.
	PingInterval time.Duration
}

// DefaultOptions returns the stock relay settings.
func DefaultOptions() Options {
	return Options{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: 5 * time.Minute,
		ChatLimit:     5,
		ChatWindow:    10 * time.Second,
		MaxMessage:    500,
		SendBuffer:    64,
		PingInterval:  30 * time.Second,
	}
}

// Server is the event relay. It owns one hub per live room.
type Server struct {
	registry *room.Registry
	bank     *cards.Bank
	src      room.Source
	log      *zap.Logger
	opts     Options
	now      func() time.Time

	mu      sync.Mutex
	hubs    map[string]*hub
	clients map[*Client]struct{}

	polls *pollSessions
}

// Option configures a Server beyond its Options.
type Option func(*Server)

// WithSource sets the randomness used to pick question cards.
func WithSource(src room.Source) Option {
	return func(s *Server) { s.src = src }
}

// WithClock sets the time source used for chat rate limiting and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New returns a relay over registry. bank may be nil, in which case rolled
// questions carry only their category.
func New(registry *room.Registry, bank *cards.Bank, logger *zap.Logger, opts Options, extra ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}
	if opts.MaxMessage <= 0 {
		opts.MaxMessage = DefaultOptions().MaxMessage
	}

	s := &Server{
		registry: registry,
		bank:     bank,
		src:      room.NewCryptoSource(),
		log:      logger,
		opts:     opts,
		now:      time.Now,
		hubs:     make(map[string]*hub),
		clients:  make(map[*Client]struct{}),
		polls:    newPollSessions(),
	}
	for _, o := range extra {
		o(s)
	}
	return s
}

// Registry returns the session registry the relay drives.
func (s *Server) Registry() *room.Registry {
	return s.registry
}

func (s *Server) pickQuestion(category int) room.Question {
	q := room.Question{Category: category}
	if s.bank == nil {
		return q
	}
	if card, ok := s.bank.Pick(category, s.src.Intn); ok {
		q.Question = card.Question
		q.Instruction = card.Instruction
	}
	return q
}

func (s *Server) hub(code string) *hub {
	code, _ = room.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hubs[code]
}

// forget unregisters h. A newer hub under the same code is left alone.
func (s *Server) forget(h *hub) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hubs[h.code] == h {
		delete(s.hubs, h.code)
	}
}

// Connections returns the number of attached connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Attach serves conn until it disconnects. It blocks; the caller's goroutine
// becomes the connection's read loop.
func (s *Server) Attach(conn Conn, remote string) {
	c := newClient(uuid.NewString(), remote, conn, s.opts.SendBuffer)

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.log.Debug("connection opened", zap.String("client", c.id), zap.String("remote", remote))

	go c.writePump(s.opts.PingInterval)

	defer s.disconnect(c)

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			return
		}
		s.dispatch(c, env)
	}
}

// disconnect is an immediate leave; there is no grace period.
func (s *Server) disconnect(c *Client) {
	c.close()

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	s.log.Debug("connection closed", zap.String("client", c.id), zap.String("remote", c.remote))

	if h := c.hub.Load(); h != nil {
		h.submit(nil, func() { h.leave(c) })
	}
}

func (s *Server) reply(c *Client, env Envelope) {
	c.enqueue(env)
}

func (s *Server) fail(c *Client, err error) {
	s.log.Debug("request rejected", zap.String("client", c.id), zap.Error(err))
	c.enqueue(errorEnvelope(err))
}

// dispatch routes one inbound frame. Requests that touch a room run on that
// room's hub; the rest are answered here.
func (s *Server) dispatch(c *Client, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("dispatch panicked", zap.String("event", env.Event), zap.Any("panic", r), zap.Stack("stack"))
			s.fail(c, fmt.Errorf("panic: %v", r))
		}
	}()

	switch env.Event {
	case EventPing:
		s.reply(c, newEnvelope(EventPong, pong{Time: s.now()}))

	case EventCheckRoom:
		code, err := decodeText(env.Data, "roomCode", "code")
		if err != nil {
			s.fail(c, err)
			return
		}
		code, _ = room.NormalizeCode(code)
		s.reply(c, newEnvelope(EventRoomStatus, roomStatus{
			RoomCode: code,
			Status:   s.registry.CheckRoom(code),
		}))

	case EventCreateRoom:
		s.createRoom(c, env)

	case EventJoinRoom:
		s.joinRoom(c, env)

	case EventRollDice, EventUpdateGame, EventNextTurn, EventResetGame, EventSendMessage, EventAnswerCompleted:
		s.roomRequest(c, env)

	default:
		s.fail(c, room.Errorf(room.CodeInvalidPayload, "unknown event "+env.Event))
	}
}

func (s *Server) createRoom(c *Client, env Envelope) {
	if c.Session() != nil {
		s.fail(c, room.ErrAlreadyInRoom)
		return
	}

	name, err := decodeText(env.Data, "playerName", "displayName")
	if err != nil {
		s.fail(c, err)
		return
	}

	code, err := s.registry.CreateRoom(c.id, name)
	if err != nil {
		s.fail(c, err)
		return
	}
	name = strings.TrimSpace(name)

	h := newHub(s, code)

	s.mu.Lock()
	s.hubs[code] = h
	s.mu.Unlock()

	go h.run()

	h.submit(c, func() { h.open(c, name) })
}

func (s *Server) joinRoom(c *Client, env Envelope) {
	if c.Session() != nil {
		s.fail(c, room.ErrAlreadyInRoom)
		return
	}

	req, err := decodeJoin(env.Data)
	if err != nil {
		s.fail(c, err)
		return
	}

	h := s.hub(req.RoomCode)
	if h == nil || !h.submit(c, func() { h.join(c, req) }) {
		s.fail(c, room.ErrRoomNotFound)
	}
}

// roomRequest decodes and validates the payload here, on the connection's
// goroutine, and hands the registry work to the room's hub.
func (s *Server) roomRequest(c *Client, env Envelope) {
	sess := c.Session()
	h := c.hub.Load()
	if sess == nil || h == nil {
		s.fail(c, room.Errorf(room.CodeNotInRoom, "join a room first"))
		return
	}

	var fn func()

	switch env.Event {
	case EventRollDice:
		fn = func() { h.roll(c, sess) }

	case EventUpdateGame:
		p, err := decodePatch(env.Data)
		if err != nil {
			s.fail(c, err)
			return
		}
		fn = func() { h.updateGame(c, sess, p) }

	case EventNextTurn:
		fn = func() { h.nextTurn(c, sess) }

	case EventResetGame:
		fn = func() { h.resetGame(c, sess) }

	case EventSendMessage:
		text, err := decodeText(env.Data, "message", "text")
		if err != nil {
			s.fail(c, err)
			return
		}
		if strings.TrimSpace(text) == "" {
			s.fail(c, room.Errorf(room.CodeInvalidPayload, "message must not be empty"))
			return
		}
		if utf8.RuneCountInString(text) > s.opts.MaxMessage {
			s.fail(c, room.Errorf(room.CodeInvalidPayload, fmt.Sprintf("message must be at most %d characters", s.opts.MaxMessage)))
			return
		}
		fn = func() { h.message(c, sess, text) }

	case EventAnswerCompleted:
		fn = func() { h.answerCompleted(c, sess) }
	}

	if !h.submit(c, fn) {
		s.fail(c, room.ErrRoomNotFound)
	}
}

// Register mounts the websocket and long-poll transports under prefix. remote
// reports the address a request came from, for logging.
func (s *Server) Register(mux *httprouter.Router, prefix string, remote func(*http.Request) string) {
	if remote == nil {
		remote = func(r *http.Request) string { return r.RemoteAddr }
	}

	mux.GET(prefix+"/ws", s.serveWS(remote))

	mux.POST(prefix+"/poll", s.openPoll(remote))
	mux.GET(prefix+"/poll/:sid", s.receivePoll())
	mux.POST(prefix+"/poll/:sid", s.sendPoll())
	mux.DELETE(prefix+"/poll/:sid", s.closePoll())
}

// Sweep removes idle rooms, telling their members before disconnecting them.
func (s *Server) Sweep(maxAge time.Duration) []string {
	codes := s.registry.SweepIdle(maxAge)

	for _, code := range codes {
		s.mu.Lock()
		h := s.hubs[code]
		delete(s.hubs, code)
		s.mu.Unlock()

		if h == nil {
			continue
		}
		h.submit(nil, func() { h.close("The room was closed after a period of inactivity.") })
	}

	if len(codes) > 0 {
		s.log.Info("swept idle rooms", zap.Strings("rooms", codes))
	}
	return codes
}

// Run sweeps idle rooms on the configured interval until ctx is done, then
// closes every room.
func (s *Server) Run(ctx context.Context) {
	if s.opts.IdleTimeout > 0 && s.opts.SweepInterval > 0 {
		ticker := time.NewTicker(s.opts.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(s.opts.IdleTimeout)
			case <-ctx.Done():
				s.Shutdown()
				return
			}
		}
	}

	<-ctx.Done()
	s.Shutdown()
}

// Shutdown closes every room and connection.
func (s *Server) Shutdown() {
	s.mu.Lock()
	hubs := lo.Values(s.hubs)
	clients := lo.Keys(s.clients)
	s.hubs = make(map[string]*hub)
	s.mu.Unlock()

	for _, h := range hubs {
		_, _ = s.registry.RemoveParticipant(h.code, room.RoleHost, "")
		if !h.submit(nil, func() { h.close("The server is shutting down.") }) {
			h.stop()
		}
	}
	// Seated clients are disconnected by their room's close.
	for _, c := range clients {
		if c.hub.Load() == nil {
			c.close()
		}
	}
}
