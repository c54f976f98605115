/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Seednode/trivia/internal/room"
)

type request struct {
	client *Client
	fn     func()
}

// hub serializes every request for one room. Requests are fully processed,
// registry mutation and broadcast enqueue included, before the next one is
// taken, so each subscriber sees a room's events in processing order.
type hub struct {
	code string
	srv  *Server
	log  *zap.Logger

	// clients and chat are only touched by the run goroutine.
	clients map[*Client]struct{}
	chat    *windowLimiter

	inbox chan request
	done  chan struct{}
	once  sync.Once

	timerMu sync.Mutex
	timer   *time.Timer
}

func newHub(srv *Server, code string) *hub {
	return &hub{
		code:    code,
		srv:     srv,
		log:     srv.log.With(zap.String("room", code)),
		clients: make(map[*Client]struct{}),
		chat:    newWindowLimiter(srv.opts.ChatLimit, srv.opts.ChatWindow),
		inbox:   make(chan request, 64),
		done:    make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case req := <-h.inbox:
			h.process(req)
		case <-h.done:
			return
		}
	}
}

// process runs one request, isolating the room from a handler panic.
func (h *hub) process(req request) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("request handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			if req.client != nil {
				req.client.enqueue(errorEnvelope(fmt.Errorf("panic: %v", r)))
			}
		}
	}()

	req.fn()
}

// submit queues fn for the room. It reports false once the room is gone.
func (h *hub) submit(c *Client, fn func()) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.inbox <- request{client: c, fn: fn}:
		return true
	case <-h.done:
		return false
	}
}

func (h *hub) stop() {
	h.once.Do(func() {
		h.stopTimer()
		close(h.done)
	})
}

func (h *hub) broadcast(env Envelope) {
	for c := range h.clients {
		if !c.enqueue(env) {
			delete(h.clients, c)
		}
	}
}

func (h *hub) reply(c *Client, env Envelope) {
	if !c.enqueue(env) {
		delete(h.clients, c)
	}
}

func (h *hub) fail(c *Client, err error) {
	h.log.Debug("request rejected", zap.String("client", c.id), zap.Error(err))
	h.reply(c, errorEnvelope(err))
}

// seat binds c to this room. It fails if c already holds a seat anywhere.
func (h *hub) seat(c *Client, s Session) bool {
	if !c.session.CompareAndSwap(nil, &s) {
		return false
	}
	c.hub.Store(h)
	h.clients[c] = struct{}{}
	return true
}

func (h *hub) open(c *Client, name string) {
	if !h.seat(c, Session{RoomCode: h.code, Role: room.RoleHost, DisplayName: name}) {
		h.srv.forget(h)
		_, _ = h.srv.registry.RemoveParticipant(h.code, room.RoleHost, c.id)
		h.fail(c, room.ErrAlreadyInRoom)
		h.stop()
		return
	}

	snap, err := h.srv.registry.Snapshot(h.code)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info("room created", zap.String("host", name), zap.String("remote", c.remote))

	h.reply(c, newEnvelope(EventRoomCreated, roomCreated{
		RoomCode:   h.code,
		PlayerName: name,
		Role:       room.RoleHost,
		GameState:  snap.State,
	}))

	if c.closed() {
		h.leave(c)
	}
}

func (h *hub) join(c *Client, req joinRequest) {
	if c.Session() != nil {
		h.fail(c, room.ErrAlreadyInRoom)
		return
	}

	role, snap, startedNow, err := h.srv.registry.JoinRoom(h.code, c.id, req.PlayerName, room.Role(req.Role))
	if err != nil {
		h.fail(c, err)
		return
	}

	if !h.seat(c, Session{RoomCode: h.code, Role: role, DisplayName: req.PlayerName}) {
		_, _ = h.srv.registry.RemoveParticipant(h.code, role, c.id)
		h.fail(c, room.ErrAlreadyInRoom)
		return
	}

	h.log.Info("player joined",
		zap.String("player", req.PlayerName),
		zap.String("role", string(role)),
		zap.String("remote", c.remote),
	)

	players := playersOf(snap)

	h.reply(c, newEnvelope(EventJoinSuccess, joinSuccess{
		RoomCode:   h.code,
		PlayerName: req.PlayerName,
		Role:       role,
		GameState:  snap.State,
		Players:    players,
		Started:    snap.Started,
	}))

	h.broadcast(newEnvelope(EventPlayerJoined, playerChange{
		PlayerName: req.PlayerName,
		Role:       role,
		Players:    players,
	}))

	if startedNow {
		h.log.Info("game started")
		h.broadcast(newEnvelope(EventGameStarted, gameStarted{
			Players:   players,
			GameState: snap.State,
		}))
	}

	if c.closed() {
		h.leave(c)
	}
}

// leave handles a disconnect. It is idempotent.
func (h *hub) leave(c *Client) {
	s := c.Session()
	if s == nil || c.hub.Load() != h {
		return
	}

	delete(h.clients, c)
	h.chat.Forget(c.id)

	removal, err := h.srv.registry.RemoveParticipant(s.RoomCode, s.Role, c.id)
	if err != nil {
		return
	}

	if removal.Closed {
		h.log.Info("host left, closing room", zap.String("host", removal.Seat.Name))
		h.srv.forget(h)
		h.close("The host has left the game.")
		return
	}

	h.log.Info("player left", zap.String("player", removal.Seat.Name), zap.String("role", string(s.Role)))

	snap, err := h.srv.registry.Snapshot(h.code)
	if err != nil {
		return
	}

	if removal.Stopped {
		h.stopTimer()
	}

	h.broadcast(newEnvelope(EventPlayerLeft, playerChange{
		PlayerName: removal.Seat.Name,
		Role:       s.Role,
		Players:    playersOf(snap),
	}))
}

// close notifies every member that the room is gone, disconnects them and
// stops the hub. The room must already be out of the registry.
func (h *hub) close(message string) {
	h.broadcast(newEnvelope(EventRoomClosed, roomClosed{RoomCode: h.code, Message: message}))

	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}

	h.stop()
}

func (h *hub) roll(c *Client, s *Session) {
	dice, q, err := h.srv.registry.Roll(h.code, c.id, s.Role, h.srv.pickQuestion)
	if err != nil {
		h.fail(c, err)
		return
	}

	team := s.Role.Team()

	h.log.Debug("dice rolled", zap.String("player", s.DisplayName), zap.Int("dice", dice))

	h.broadcast(newEnvelope(EventDiceRolled, diceRolled{
		Dice:       dice,
		Team:       team,
		PlayerName: s.DisplayName,
	}))
	h.broadcast(newEnvelope(EventQuestionShow, questionShow{
		Question:    q.Question,
		Category:    q.Category,
		Instruction: q.Instruction,
		Team:        team,
	}))

	if snap, err := h.srv.registry.Snapshot(h.code); err == nil {
		h.armTimer(snap.State.Turn)
	}
}

func (h *hub) updateGame(c *Client, s *Session, p room.Patch) {
	snap, winner, err := h.srv.registry.UpdateGame(h.code, s.Role, p)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.broadcast(newEnvelope(EventGameUpdated, snap.State))

	if winner != 0 {
		h.log.Info("game over", zap.Int("winner", winner))
		h.stopTimer()
		h.broadcast(newEnvelope(EventGameOver, gameOver{
			Winner:     winner,
			PlayerName: snap.TeamName(winner),
			Scores:     snap.State.Scores,
			Positions:  snap.State.Positions,
		}))
	}
}

func (h *hub) nextTurn(c *Client, s *Session) {
	snap, err := h.srv.registry.AdvanceTurn(h.code, s.Role)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.stopTimer()

	h.broadcast(newEnvelope(EventTurnChanged, turnChanged{
		CurrentPlayer: snap.State.CurrentPlayer,
		PlayerName:    snap.TeamName(snap.State.CurrentPlayer),
		Turn:          snap.State.Turn,
	}))
}

func (h *hub) resetGame(c *Client, s *Session) {
	snap, err := h.srv.registry.ResetGame(h.code, s.Role)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.stopTimer()
	h.log.Info("game reset")

	h.broadcast(newEnvelope(EventGameReset, gameReset{GameState: snap.State}))
}

func (h *hub) message(c *Client, s *Session, text string) {
	now := h.srv.now()

	if !h.chat.Allow(c.id, now) {
		h.fail(c, room.Errorf(room.CodeRateLimited, "too many messages, slow down"))
		return
	}

	if err := h.srv.registry.Touch(h.code); err != nil {
		h.fail(c, err)
		return
	}

	h.broadcast(newEnvelope(EventNewMessage, newMessage{
		PlayerName: s.DisplayName,
		Role:       s.Role,
		Message:    text,
		Timestamp:  now,
	}))
}

func (h *hub) answerCompleted(c *Client, s *Session) {
	team := s.Role.Team()
	if team == 0 {
		h.fail(c, room.Errorf(room.CodeInvalidRole, "only a team can complete an answer"))
		return
	}

	if err := h.srv.registry.Touch(h.code); err != nil {
		h.fail(c, err)
		return
	}

	h.broadcast(newEnvelope(EventAnswerCompleted, answerCompleted{
		Team:       team,
		PlayerName: s.DisplayName,
	}))
}

// armTimer schedules a turn-expired notice for turn, replacing any earlier one.
func (h *hub) armTimer(turn int) {
	d := h.srv.opts.TurnTimeout
	if d <= 0 {
		return
	}

	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(d, func() {
		h.submit(nil, func() { h.expire(turn) })
	})
}

func (h *hub) stopTimer() {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *hub) expire(turn int) {
	snap, err := h.srv.registry.Snapshot(h.code)
	if err != nil {
		return
	}
	if snap.State.Turn != turn || snap.State.DiceResult == 0 || snap.State.Winner != 0 {
		return
	}

	h.log.Debug("turn expired", zap.Int("turn", turn), zap.Int("team", snap.State.CurrentPlayer))

	h.broadcast(newEnvelope(EventTurnExpired, turnExpired{
		Team: snap.State.CurrentPlayer,
		Turn: turn,
	}))
}
