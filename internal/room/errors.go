/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

// Code identifies a recoverable failure reported to the originating connection.
type Code string

const (
	CodeRoomNotFound   Code = "ROOM_NOT_FOUND"
	CodeRoomFull       Code = "ROOM_FULL"
	CodeAlreadyInRoom  Code = "ALREADY_IN_ROOM"
	CodeNotYourTurn    Code = "NOT_YOUR_TURN"
	CodeAlreadyRolled  Code = "ALREADY_ROLLED"
	CodeNotHost        Code = "NOT_HOST"
	CodeNotStarted     Code = "GAME_NOT_STARTED"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeInvalidName    Code = "INVALID_NAME"
	CodeInvalidCode    Code = "INVALID_ROOM_CODE"
	CodeInvalidRole    Code = "INVALID_ROLE"
	CodeInvalidPayload Code = "INVALID_PAYLOAD"
	CodeNotInRoom      Code = "NOT_IN_ROOM"
	CodeInternal       Code = "INTERNAL"
)

// Error is a typed, user-facing failure. Two errors match under errors.Is
// when their codes are equal, so callers may compare against the sentinels
// below even when the message was customised.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Errorf returns an *Error with code c and a custom message.
func Errorf(c Code, msg string) *Error {
	return &Error{Code: c, Message: msg}
}

var (
	ErrRoomNotFound  = &Error{Code: CodeRoomNotFound, Message: "room not found"}
	ErrRoomFull      = &Error{Code: CodeRoomFull, Message: "room is full"}
	ErrAlreadyInRoom = &Error{Code: CodeAlreadyInRoom, Message: "already seated in this room"}
	ErrNotYourTurn   = &Error{Code: CodeNotYourTurn, Message: "it is not your turn"}
	ErrAlreadyRolled = &Error{Code: CodeAlreadyRolled, Message: "the dice were already rolled this turn"}
	ErrNotHost       = &Error{Code: CodeNotHost, Message: "only the host may do that"}
	ErrNotStarted    = &Error{Code: CodeNotStarted, Message: "waiting for both teams to join"}
	ErrInvalidName   = &Error{Code: CodeInvalidName, Message: "display name must not be empty"}
	ErrInvalidCode   = &Error{Code: CodeInvalidCode, Message: "room code must be 6 characters from A-Z and 0-9"}
	ErrInvalidRole   = &Error{Code: CodeInvalidRole, Message: "unknown role"}
)
