/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

const (
	// FinishPosition is the last cell of the board; reaching it ends the game.
	FinishPosition = 40
	// Categories is the number of question categories, one per die face.
	Categories = 6
)

// Role is the seat a connection holds in a room.
type Role string

const (
	RoleHost    Role = "master"
	RolePlayer1 Role = "player1"
	RolePlayer2 Role = "player2"
)

// ParseRole accepts the wire names of the three seats. The empty string is
// returned as "" with ok=true and means "any free team slot".
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "", RoleHost, RolePlayer1, RolePlayer2:
		return Role(s), true
	}
	return "", false
}

// Team returns 1 or 2 for team roles and 0 for the host.
func (r Role) Team() int {
	switch r {
	case RolePlayer1:
		return 1
	case RolePlayer2:
		return 2
	}
	return 0
}

// TeamRole is the inverse of Role.Team.
func TeamRole(team int) Role {
	if team == 2 {
		return RolePlayer2
	}
	return RolePlayer1
}

// Question is the card pushed to the room after a roll.
type Question struct {
	Category    int    `json:"category"`
	Question    string `json:"question"`
	Instruction string `json:"instruction"`
}

// TurnState is the authoritative game state of a room. Maps are keyed by
// team number (1 or 2).
type TurnState struct {
	CurrentPlayer   int         `json:"currentPlayer"`
	DiceResult      int         `json:"diceResult"`
	Scores          map[int]int `json:"scores"`
	Positions       map[int]int `json:"positions"`
	PendingQuestion *Question   `json:"pendingQuestion"`
	Turn            int         `json:"turn"`
	Winner          int         `json:"winner,omitempty"`
}

func initialState() TurnState {
	return TurnState{
		CurrentPlayer: 1,
		Scores:        map[int]int{1: 0, 2: 0},
		Positions:     map[int]int{1: 0, 2: 0},
		Turn:          1,
	}
}

func (s TurnState) clone() TurnState {
	out := s
	out.Scores = map[int]int{1: s.Scores[1], 2: s.Scores[2]}
	out.Positions = map[int]int{1: s.Positions[1], 2: s.Positions[2]}
	if s.PendingQuestion != nil {
		q := *s.PendingQuestion
		out.PendingQuestion = &q
	}
	return out
}

// Patch is the narrowed shape accepted from the host by UpdateGame. Nil
// fields are left untouched. DiceResult is accepted because clients echo it
// back, but it never changes the room's die.
type Patch struct {
	Scores        map[int]int `json:"scores,omitempty"`
	Positions     map[int]int `json:"positions,omitempty"`
	CurrentPlayer *int        `json:"currentPlayer,omitempty"`
	DiceResult    *int        `json:"diceResult,omitempty"`
}

// Validate rejects team keys other than 1 and 2 and out-of-range values.
// Positions are not rejected for being out of range; they are clamped.
func (p Patch) Validate() error {
	for team := range p.Scores {
		if team != 1 && team != 2 {
			return Errorf(CodeInvalidPayload, "scores may only name teams 1 and 2")
		}
	}
	for team := range p.Positions {
		if team != 1 && team != 2 {
			return Errorf(CodeInvalidPayload, "positions may only name teams 1 and 2")
		}
	}
	if p.CurrentPlayer != nil && *p.CurrentPlayer != 1 && *p.CurrentPlayer != 2 {
		return Errorf(CodeInvalidPayload, "currentPlayer must be 1 or 2")
	}
	if p.DiceResult != nil && (*p.DiceResult < 0 || *p.DiceResult > Categories) {
		return Errorf(CodeInvalidPayload, "diceResult must be between 0 and 6")
	}
	return nil
}

func clampPosition(v int) int {
	if v < 0 {
		return 0
	}
	if v > FinishPosition {
		return FinishPosition
	}
	return v
}
