package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func startedRoom(t require.TestingT, opts ...Option) (*Registry, string) {
	reg := NewRegistry(opts...)
	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)
	_, _, _, err = reg.JoinRoom(code, "t1", "Kitchen", RolePlayer1)
	require.NoError(t, err)
	_, _, _, err = reg.JoinRoom(code, "t2", "Bar", RolePlayer2)
	require.NoError(t, err)
	return reg, code
}

func intPtr(v int) *int { return &v }

func pickFixed(category int) Question {
	return Question{Question: "What is mise en place?", Instruction: "Explain briefly"}
}

func TestRoll_Success(t *testing.T) {
	reg, code := startedRoom(t)

	dice, q, err := reg.Roll(code, "t1", RolePlayer1, pickFixed)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, dice, 1)
	assert.LessOrEqual(t, dice, 6)
	assert.Equal(t, dice, q.Category)
	assert.NotEmpty(t, q.Question)

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.Equal(t, dice, snap.State.DiceResult)
	require.NotNil(t, snap.State.PendingQuestion)
	assert.Equal(t, q, *snap.State.PendingQuestion)
}

func TestRoll_Rejections(t *testing.T) {
	reg := NewRegistry()
	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)
	_, _, _, err = reg.JoinRoom(code, "t1", "Kitchen", RolePlayer1)
	require.NoError(t, err)

	_, _, err = reg.Roll(code, "t1", RolePlayer1, pickFixed)
	assert.ErrorIs(t, err, ErrNotStarted)

	_, _, _, err = reg.JoinRoom(code, "t2", "Bar", RolePlayer2)
	require.NoError(t, err)

	_, _, err = reg.Roll(code, "t2", RolePlayer2, pickFixed)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, _, err = reg.Roll(code, "host", RoleHost, pickFixed)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, _, err = reg.Roll(code, "impostor", RolePlayer1, pickFixed)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, _, err = reg.Roll("NOROOM", "t1", RolePlayer1, pickFixed)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoll_SecondRollRejected(t *testing.T) {
	reg, code := startedRoom(t, WithSource(&seqSource{vals: append(codeVals("ROLL66"), 3, 5)}))

	dice, _, err := reg.Roll(code, "t1", RolePlayer1, pickFixed)
	require.NoError(t, err)
	assert.Equal(t, 4, dice)

	_, _, err = reg.Roll(code, "t1", RolePlayer1, pickFixed)
	assert.ErrorIs(t, err, ErrAlreadyRolled)

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.State.DiceResult, "rejected roll must not change the die")
}

func TestAdvanceTurn(t *testing.T) {
	reg, code := startedRoom(t)

	_, _, err := reg.Roll(code, "t1", RolePlayer1, pickFixed)
	require.NoError(t, err)

	_, err = reg.AdvanceTurn(code, RolePlayer1)
	assert.ErrorIs(t, err, ErrNotHost)

	snap, err := reg.AdvanceTurn(code, RoleHost)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.State.CurrentPlayer)
	assert.Equal(t, 0, snap.State.DiceResult)
	assert.Nil(t, snap.State.PendingQuestion)
	assert.Equal(t, 2, snap.State.Turn)

	_, _, err = reg.Roll(code, "t2", RolePlayer2, pickFixed)
	assert.NoError(t, err)
}

// TestAdvanceTurn_Parity_Property verifies that after N advances the active
// team is 1 for even N and 2 for odd N.
func TestAdvanceTurn_Parity_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg, code := startedRoom(rt)
		n := rapid.IntRange(0, 60).Draw(rt, "n")

		for i := 0; i < n; i++ {
			snap, err := reg.AdvanceTurn(code, RoleHost)
			require.NoError(rt, err)
			assert.Contains(rt, []int{1, 2}, snap.State.CurrentPlayer)
		}

		snap, err := reg.Snapshot(code)
		require.NoError(rt, err)
		want := 1
		if n%2 == 1 {
			want = 2
		}
		assert.Equal(rt, want, snap.State.CurrentPlayer)
	})
}

func TestUpdateGame_GameOver(t *testing.T) {
	reg, code := startedRoom(t)

	snap, winner, err := reg.UpdateGame(code, RoleHost, Patch{
		Positions: map[int]int{1: 40, 2: 10},
		Scores:    map[int]int{1: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, winner)
	assert.Equal(t, 40, snap.State.Positions[1])
	assert.Equal(t, 10, snap.State.Positions[2])
	assert.Equal(t, 7, snap.State.Scores[1])
	assert.Equal(t, 0, snap.State.Scores[2])
	assert.Equal(t, 1, snap.State.Winner)
	assert.True(t, snap.Started, "room stays in progress until the host resets")
}

func TestUpdateGame_ClampsPositions(t *testing.T) {
	reg, code := startedRoom(t)

	snap, winner, err := reg.UpdateGame(code, RoleHost, Patch{Positions: map[int]int{1: -5, 2: 99}})
	require.NoError(t, err)
	assert.Equal(t, 0, snap.State.Positions[1])
	assert.Equal(t, 40, snap.State.Positions[2])
	assert.Equal(t, 2, winner)
}

func TestUpdateGame_KeepsDie(t *testing.T) {
	reg, code := startedRoom(t)

	dice, _, err := reg.Roll(code, "t1", RolePlayer1, pickFixed)
	require.NoError(t, err)

	snap, _, err := reg.UpdateGame(code, RoleHost, Patch{
		Scores:     map[int]int{1: 1},
		DiceResult: intPtr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, dice, snap.State.DiceResult)
	assert.Equal(t, 1, snap.State.Scores[1])

	_, _, err = reg.Roll(code, "t1", RolePlayer1, pickFixed)
	assert.ErrorIs(t, err, ErrAlreadyRolled)
}

func TestUpdateGame_Rejections(t *testing.T) {
	reg, code := startedRoom(t)

	_, _, err := reg.UpdateGame(code, RolePlayer2, Patch{Scores: map[int]int{2: 100}})
	assert.ErrorIs(t, err, ErrNotHost)

	_, _, err = reg.UpdateGame(code, RoleHost, Patch{Scores: map[int]int{3: 1}})
	assert.ErrorIs(t, err, Errorf(CodeInvalidPayload, ""))

	_, _, err = reg.UpdateGame(code, RoleHost, Patch{CurrentPlayer: intPtr(3)})
	assert.ErrorIs(t, err, Errorf(CodeInvalidPayload, ""))

	_, _, err = reg.UpdateGame(code, RoleHost, Patch{DiceResult: intPtr(7)})
	assert.ErrorIs(t, err, Errorf(CodeInvalidPayload, ""))

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.State.Scores[2])
	assert.Equal(t, 1, snap.State.CurrentPlayer)
}

func TestResetGame(t *testing.T) {
	reg, code := startedRoom(t)

	_, _, err := reg.UpdateGame(code, RoleHost, Patch{
		Positions:     map[int]int{1: 40},
		Scores:        map[int]int{1: 5, 2: 3},
		CurrentPlayer: intPtr(2),
	})
	require.NoError(t, err)

	_, err = reg.ResetGame(code, RolePlayer1)
	assert.ErrorIs(t, err, ErrNotHost)

	snap, err := reg.ResetGame(code, RoleHost)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.State.CurrentPlayer)
	assert.Equal(t, map[int]int{1: 0, 2: 0}, snap.State.Scores)
	assert.Equal(t, map[int]int{1: 0, 2: 0}, snap.State.Positions)
	assert.Equal(t, 0, snap.State.Winner)
	assert.Equal(t, 2, snap.State.Turn)
	assert.True(t, snap.Started)
	assert.Equal(t, 2, snap.Seated())
}

func TestSnapshot_IsCopy(t *testing.T) {
	reg, code := startedRoom(t)

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	snap.State.Scores[1] = 99
	snap.Teams[0].Name = "mutated"

	again, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.Equal(t, 0, again.State.Scores[1])
	assert.Equal(t, "Kitchen", again.Teams[0].Name)
}
