/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Seednode/trivia/internal/room"
)

// Envelope is one frame on the wire in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound events.
const (
	EventCreateRoom      = "create-room"
	EventJoinRoom        = "join-room"
	EventCheckRoom       = "check-room"
	EventRollDice        = "roll-dice"
	EventUpdateGame      = "update-game"
	EventNextTurn        = "next-turn"
	EventResetGame       = "reset-game"
	EventSendMessage     = "send-message"
	EventAnswerCompleted = "answer-completed"
	EventPing            = "ping"
)

// Outbound events.
const (
	EventRoomCreated  = "room-created"
	EventJoinSuccess  = "join-success"
	EventPlayerJoined = "player-joined"
	EventPlayerLeft   = "player-left"
	EventRoomClosed   = "room-closed"
	EventDiceRolled   = "dice-rolled"
	EventQuestionShow = "question-show"
	EventGameUpdated  = "game-updated"
	EventTurnChanged  = "turn-changed"
	EventGameStarted  = "game-started"
	EventGameOver     = "game-over"
	EventGameReset    = "game-reset"
	EventNewMessage   = "new-message"
	EventRoomStatus   = "room-status"
	EventTurnExpired  = "turn-expired"
	EventPong         = "pong"
	EventError        = "error"
)

func newEnvelope(event string, v any) Envelope {
	env := Envelope{Event: event}
	if v == nil {
		return env
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic("relay: unencodable payload for " + event + ": " + err.Error())
	}
	env.Data = data
	return env
}

// ErrorPayload is the body of every error event.
type ErrorPayload struct {
	Code    room.Code `json:"code"`
	Message string    `json:"message"`
}

func errorEnvelope(err error) Envelope {
	var re *room.Error
	if !errors.As(err, &re) {
		re = room.Errorf(room.CodeInternal, "internal error")
	}
	return newEnvelope(EventError, ErrorPayload{Code: re.Code, Message: re.Message})
}

// Players maps each seat to the display name holding it, "" when empty.
type Players struct {
	Master  string `json:"master"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

func playersOf(snap room.Snapshot) Players {
	return Players{
		Master:  snap.Host.Name,
		Player1: snap.TeamName(1),
		Player2: snap.TeamName(2),
	}
}

type roomCreated struct {
	RoomCode   string         `json:"roomCode"`
	PlayerName string         `json:"playerName"`
	Role       room.Role      `json:"role"`
	GameState  room.TurnState `json:"gameState"`
}

type joinSuccess struct {
	RoomCode   string         `json:"roomCode"`
	PlayerName string         `json:"playerName"`
	Role       room.Role      `json:"role"`
	GameState  room.TurnState `json:"gameState"`
	Players    Players        `json:"players"`
	Started    bool           `json:"started"`
}

type playerChange struct {
	PlayerName string    `json:"playerName"`
	Role       room.Role `json:"role"`
	Players    Players   `json:"players"`
}

type gameStarted struct {
	Players   Players        `json:"players"`
	GameState room.TurnState `json:"gameState"`
}

type roomClosed struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

type diceRolled struct {
	Dice       int    `json:"dice"`
	Team       int    `json:"team"`
	PlayerName string `json:"playerName"`
}

type questionShow struct {
	Question    string `json:"question"`
	Category    int    `json:"category"`
	Instruction string `json:"instruction"`
	Team        int    `json:"team"`
}

type turnChanged struct {
	CurrentPlayer int    `json:"currentPlayer"`
	PlayerName    string `json:"playerName"`
	Turn          int    `json:"turn"`
}

type gameOver struct {
	Winner     int         `json:"winner"`
	PlayerName string      `json:"playerName"`
	Scores     map[int]int `json:"scores"`
	Positions  map[int]int `json:"positions"`
}

type gameReset struct {
	GameState room.TurnState `json:"gameState"`
}

type newMessage struct {
	PlayerName string    `json:"playerName"`
	Role       room.Role `json:"role"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

type answerCompleted struct {
	Team       int    `json:"team"`
	PlayerName string `json:"playerName"`
}

type turnExpired struct {
	Team int `json:"team"`
	Turn int `json:"turn"`
}

type roomStatus struct {
	RoomCode string `json:"roomCode"`
	room.Status
}

type pong struct {
	Time time.Time `json:"time"`
}

var validate = validator.New()

type joinRequest struct {
	RoomCode   string `json:"roomCode" validate:"required,len=6,alphanum,uppercase"`
	PlayerName string `json:"playerName" validate:"required,max=32"`
	Role       string `json:"role" validate:"omitempty,oneof=master player1 player2"`
}

// validationError maps validator failures onto the wire error taxonomy.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return room.Errorf(room.CodeInvalidPayload, "malformed request")
	}
	switch verrs[0].Field() {
	case "RoomCode":
		return room.ErrInvalidCode
	case "PlayerName":
		return room.ErrInvalidName
	case "Role":
		return room.ErrInvalidRole
	}
	return room.Errorf(room.CodeInvalidPayload, "invalid "+verrs[0].Field())
}

// decodeJoin accepts {roomCode, playerName|displayName, role}.
func decodeJoin(data json.RawMessage) (joinRequest, error) {
	var raw struct {
		RoomCode    string `json:"roomCode"`
		PlayerName  string `json:"playerName"`
		DisplayName string `json:"displayName"`
		Role        string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return joinRequest{}, room.Errorf(room.CodeInvalidPayload, "malformed join request")
	}

	req := joinRequest{
		RoomCode:   strings.ToUpper(strings.TrimSpace(raw.RoomCode)),
		PlayerName: strings.TrimSpace(raw.PlayerName),
		Role:       raw.Role,
	}
	if req.PlayerName == "" {
		req.PlayerName = strings.TrimSpace(raw.DisplayName)
	}

	if err := validate.Struct(req); err != nil {
		return joinRequest{}, validationError(err)
	}
	return req, nil
}

// decodeText accepts either a bare JSON string or an object carrying the
// value under one of keys.
func decodeText(data json.RawMessage, keys ...string) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", room.Errorf(room.CodeInvalidPayload, "malformed request")
		}
		return s, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", room.Errorf(room.CodeInvalidPayload, "malformed request")
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", room.Errorf(room.CodeInvalidPayload, k+" must be a string")
		}
		return s, nil
	}
	return "", nil
}

// decodePatch rejects any field outside the narrowed update shape.
func decodePatch(data json.RawMessage) (room.Patch, error) {
	var p room.Patch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return room.Patch{}, room.Errorf(room.CodeInvalidPayload, "update may only carry scores, positions, currentPlayer and diceResult")
	}
	return p, nil
}
