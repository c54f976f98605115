/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

// Picker chooses the question card for a rolled category.
type Picker func(category int) Question

// Roll rolls the die for the active team. Only the connection seated in the
// active team's slot may roll, once per turn, while the game is in progress.
//
// Postcondition: on success State.DiceResult is in [1,6] and State.PendingQuestion
// holds the card returned by pick for that category.
func (r *Registry) Roll(code, id string, role Role, pick Picker) (int, Question, error) {
	rm, err := r.lookup(code)
	if err != nil {
		return 0, Question{}, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.lastActivity = r.now()

	if !rm.started {
		return 0, Question{}, ErrNotStarted
	}

	team := role.Team()
	if team == 0 || team != rm.state.CurrentPlayer {
		return 0, Question{}, ErrNotYourTurn
	}
	if seat := rm.teams[team-1]; seat == nil || seat.ID != id {
		return 0, Question{}, ErrNotYourTurn
	}

	if rm.state.DiceResult != 0 {
		return 0, Question{}, ErrAlreadyRolled
	}

	dice := r.src.Intn(Categories) + 1

	q := Question{Category: dice}
	if pick != nil {
		q = pick(dice)
		q.Category = dice
	}

	rm.state.DiceResult = dice
	rm.state.PendingQuestion = &q

	return dice, q, nil
}

// UpdateGame merges a host patch into the turn state. Positions are clamped
// to the board. The die is only ever written by Roll, AdvanceTurn and
// ResetGame, so a patch's diceResult is validated and then ignored. winner is the first team, in team order, whose position has
// reached the finish, or 0.
func (r *Registry) UpdateGame(code string, role Role, p Patch) (snap Snapshot, winner int, err error) {
	rm, err := r.lookup(code)
	if err != nil {
		return Snapshot{}, 0, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.lastActivity = r.now()

	if role != RoleHost {
		return Snapshot{}, 0, ErrNotHost
	}
	if err := p.Validate(); err != nil {
		return Snapshot{}, 0, err
	}

	for team, score := range p.Scores {
		rm.state.Scores[team] = score
	}
	for team, pos := range p.Positions {
		rm.state.Positions[team] = clampPosition(pos)
	}
	if p.CurrentPlayer != nil {
		rm.state.CurrentPlayer = *p.CurrentPlayer
	}

	for _, team := range []int{1, 2} {
		if rm.state.Positions[team] >= FinishPosition {
			winner = team
			break
		}
	}
	rm.state.Winner = winner

	return rm.snapshotLocked(), winner, nil
}

// AdvanceTurn passes the turn to the other team and clears the die and the
// pending question.
func (r *Registry) AdvanceTurn(code string, role Role) (Snapshot, error) {
	rm, err := r.lookup(code)
	if err != nil {
		return Snapshot{}, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.lastActivity = r.now()

	if role != RoleHost {
		return Snapshot{}, ErrNotHost
	}

	if rm.state.CurrentPlayer == 1 {
		rm.state.CurrentPlayer = 2
	} else {
		rm.state.CurrentPlayer = 1
	}
	rm.state.DiceResult = 0
	rm.state.PendingQuestion = nil
	rm.state.Turn++

	return rm.snapshotLocked(), nil
}

// ResetGame restores the initial turn state while keeping every seat. The
// turn counter keeps counting so timers armed before the reset never match.
func (r *Registry) ResetGame(code string, role Role) (Snapshot, error) {
	rm, err := r.lookup(code)
	if err != nil {
		return Snapshot{}, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.lastActivity = r.now()

	if role != RoleHost {
		return Snapshot{}, ErrNotHost
	}

	turn := rm.state.Turn
	rm.state = initialState()
	rm.state.Turn = turn + 1

	return rm.snapshotLocked(), nil
}
