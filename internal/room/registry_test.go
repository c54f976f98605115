package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// seqSource replays vals in order, wrapping around, reducing each mod n.
type seqSource struct {
	mu   sync.Mutex
	vals []int
	i    int
}

func (s *seqSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v % n
}

// codeVals returns the alphabet indices spelling code.
func codeVals(code string) []int {
	out := make([]int, 0, len(code))
	for i := 0; i < len(code); i++ {
		for j := 0; j < len(codeAlphabet); j++ {
			if codeAlphabet[j] == code[i] {
				out = append(out, j)
			}
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCreateRoom_Code(t *testing.T) {
	reg := NewRegistry(WithSource(&seqSource{vals: codeVals("ABC123")}))

	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.Equal(t, "Chef", snap.Host.Name)
	assert.False(t, snap.Started)
	assert.Equal(t, 1, snap.State.CurrentPlayer)
	assert.Equal(t, 0, snap.State.DiceResult)
	assert.Equal(t, map[int]int{1: 0, 2: 0}, snap.State.Scores)
	assert.Equal(t, map[int]int{1: 0, 2: 0}, snap.State.Positions)
	assert.Nil(t, snap.State.PendingQuestion)
}

func TestCreateRoom_EmptyName(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.CreateRoom("host", "   ")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Equal(t, 0, reg.Len())
}

func TestCreateRoom_RegeneratesOnCollision(t *testing.T) {
	vals := append(codeVals("AAAAAA"), codeVals("AAAAAA")...)
	vals = append(vals, codeVals("BBBBBB")...)
	reg := NewRegistry(WithSource(&seqSource{vals: vals}))

	first, err := reg.CreateRoom("h1", "One")
	require.NoError(t, err)
	second, err := reg.CreateRoom("h2", "Two")
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first)
	assert.Equal(t, "BBBBBB", second)
}

func TestCreateRoom_TenThousandUnique(t *testing.T) {
	reg := NewRegistry()
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		code, err := reg.CreateRoom(fmt.Sprintf("h%d", i), "Host")
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate code %s", code)
		_, ok := NormalizeCode(code)
		require.True(t, ok, "malformed code %s", code)
		seen[code] = true
	}
	assert.Equal(t, 10000, reg.Len())
}

func TestJoinRoom_SeatsBothTeams(t *testing.T) {
	reg := NewRegistry(WithSource(&seqSource{vals: codeVals("ABC123")}))
	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)

	role, snap, startedNow, err := reg.JoinRoom("abc123", "t1", "Waiters", RolePlayer1)
	require.NoError(t, err)
	assert.Equal(t, RolePlayer1, role)
	assert.Equal(t, 1, snap.State.CurrentPlayer)
	assert.False(t, startedNow)
	assert.False(t, snap.Started)

	status := reg.CheckRoom(code)
	assert.True(t, status.Exists)
	assert.True(t, status.Players[RolePlayer1])
	assert.False(t, status.Players[RolePlayer2])
}

func TestJoinRoom_RequestedSlotHonoured(t *testing.T) {
	reg := NewRegistry()
	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)

	role, _, _, err := reg.JoinRoom(code, "t2", "Bar", RolePlayer2)
	require.NoError(t, err)
	assert.Equal(t, RolePlayer2, role)

	role, snap, startedNow, err := reg.JoinRoom(code, "t1", "Kitchen", RolePlayer2)
	require.NoError(t, err)
	assert.Equal(t, RolePlayer1, role, "taken slot falls back to the first free one")
	assert.True(t, startedNow)
	assert.True(t, snap.Started)
}

func TestJoinRoom_Errors(t *testing.T) {
	reg := NewRegistry()
	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)

	_, _, _, err = reg.JoinRoom("ZZZZZZ", "x", "X", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, _, _, err = reg.JoinRoom("ABC", "x", "X", "")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, _, _, err = reg.JoinRoom(code, "x", "", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, _, _, err = reg.JoinRoom(code, "x", "X", "referee")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, _, _, err = reg.JoinRoom(code, "host", "Chef", "")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	_, _, _, err = reg.JoinRoom(code, "t1", "One", "")
	require.NoError(t, err)
	_, _, _, err = reg.JoinRoom(code, "t1", "One", "")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	_, _, _, err = reg.JoinRoom(code, "t2", "Two", "")
	require.NoError(t, err)
	_, _, _, err = reg.JoinRoom(code, "t3", "Three", "")
	assert.ErrorIs(t, err, ErrRoomFull)
}

// TestJoinRoom_SeatLimits_Property checks that no sequence of joins ever
// seats more than two teams, and that every join beyond the second fails
// with ROOM_FULL or ALREADY_IN_ROOM.
func TestJoinRoom_SeatLimits_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg := NewRegistry()
		code, err := reg.CreateRoom("host", "Chef")
		require.NoError(rt, err)

		ids := rapid.SliceOfN(rapid.SampledFrom([]string{"host", "a", "b", "c", "d"}), 1, 12).Draw(rt, "ids")
		roles := []Role{"", RoleHost, RolePlayer1, RolePlayer2}

		seated := map[string]bool{}
		for i, id := range ids {
			requested := rapid.SampledFrom(roles).Draw(rt, fmt.Sprintf("role%d", i))
			_, snap, _, err := reg.JoinRoom(code, id, "name-"+id, requested)

			switch {
			case id == "host" || seated[id]:
				assert.ErrorIs(rt, err, ErrAlreadyInRoom)
			case len(seated) == 2:
				assert.ErrorIs(rt, err, ErrRoomFull)
			default:
				require.NoError(rt, err)
				seated[id] = true
				assert.Equal(rt, len(seated), snap.Seated())
			}
		}

		snap, err := reg.Snapshot(code)
		require.NoError(rt, err)
		assert.LessOrEqual(rt, snap.Seated(), 2)
		assert.Equal(rt, "host", snap.Host.ID)
	})
}

func TestCheckRoom_Unknown(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.CheckRoom("QWERTY").Exists)
	assert.False(t, reg.CheckRoom("bad").Exists)
}

func TestRemoveParticipant_Team(t *testing.T) {
	reg := NewRegistry()
	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)
	_, _, _, err = reg.JoinRoom(code, "t1", "One", "")
	require.NoError(t, err)
	_, _, _, err = reg.JoinRoom(code, "t2", "Two", "")
	require.NoError(t, err)

	_, err = reg.RemoveParticipant(code, RolePlayer1, "someone-else")
	assert.ErrorIs(t, err, Errorf(CodeNotInRoom, ""))

	removal, err := reg.RemoveParticipant(code, RolePlayer1, "t1")
	require.NoError(t, err)
	assert.False(t, removal.Closed)
	assert.True(t, removal.Stopped)
	assert.Equal(t, "One", removal.Seat.Name)

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.False(t, snap.Started)
	assert.Nil(t, snap.Teams[0])

	role, _, startedNow, err := reg.JoinRoom(code, "t3", "Three", "")
	require.NoError(t, err)
	assert.Equal(t, RolePlayer1, role)
	assert.True(t, startedNow)
}

func TestRemoveParticipant_HostClosesRoom(t *testing.T) {
	reg := NewRegistry()
	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)

	removal, err := reg.RemoveParticipant(code, RoleHost, "host")
	require.NoError(t, err)
	assert.True(t, removal.Closed)
	assert.Equal(t, 0, reg.Len())

	_, err = reg.RemoveParticipant(code, RoleHost, "host")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSweepIdle(t *testing.T) {
	clock := newClock()
	reg := NewRegistry(WithClock(clock.Now))

	old, err := reg.CreateRoom("h1", "Old")
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	young, err := reg.CreateRoom("h2", "Young")
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	removed := reg.SweepIdle(30 * time.Minute)

	assert.Equal(t, []string{old}, removed)
	assert.Equal(t, 1, reg.Len())
	assert.True(t, reg.CheckRoom(young).Exists)
	assert.False(t, reg.CheckRoom(old).Exists)
}

func TestSweepIdle_TouchKeepsRoomAlive(t *testing.T) {
	clock := newClock()
	reg := NewRegistry(WithClock(clock.Now))

	code, err := reg.CreateRoom("h1", "Host")
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	require.NoError(t, reg.Touch(code))
	clock.Advance(25 * time.Minute)

	assert.Empty(t, reg.SweepIdle(30*time.Minute))
	assert.Equal(t, 1, reg.Len())
}

func TestList_OldestFirst(t *testing.T) {
	clock := newClock()
	reg := NewRegistry(WithClock(clock.Now))

	first, err := reg.CreateRoom("h1", "One")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := reg.CreateRoom("h2", "Two")
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].Code)
	assert.Equal(t, second, list[1].Code)
}

func TestNormalizeCode(t *testing.T) {
	code, ok := NormalizeCode(" abc123 ")
	assert.True(t, ok)
	assert.Equal(t, "ABC123", code)

	for _, bad := range []string{"", "ABC12", "ABC1234", "ABC-12", "ÄBC123"} {
		_, ok := NormalizeCode(bad)
		assert.False(t, ok, "%q should be rejected", bad)
	}
}

func TestConcurrentJoins(t *testing.T) {
	reg := NewRegistry()
	code, err := reg.CreateRoom("host", "Chef")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		full    int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _, err := reg.JoinRoom(code, fmt.Sprintf("c%d", i), "Team", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
			} else if assert.ErrorIs(t, err, ErrRoomFull) {
				full++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, success)
	assert.Equal(t, 48, full)
}
