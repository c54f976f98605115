/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package room holds the in-memory session registry: the live rooms keyed by
// code, their seats and their authoritative turn state.
//
// Registry methods are safe for concurrent use. The registry lock guards the
// map of rooms; each Room has its own lock guarding its record, and no method
// holds more than one room lock at a time.
package room

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxNameLength is the longest display name, in characters, a seat accepts.
const MaxNameLength = 32

// Seat binds a connection identity to a display name.
type Seat struct {
	ID   string `json:"-"`
	Name string `json:"name"`
}

// Room is a single game session. Fields are only touched with mu held.
type Room struct {
	mu sync.Mutex

	code         string
	host         Seat
	teams        [2]*Seat
	state        TurnState
	started      bool
	createdAt    time.Time
	lastActivity time.Time
}

// Snapshot is a copy of a room record, safe to read without locks.
type Snapshot struct {
	Code         string    `json:"code"`
	Host         Seat      `json:"host"`
	Teams        [2]*Seat  `json:"teams"`
	State        TurnState `json:"state"`
	Started      bool      `json:"started"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Seated reports how many team slots are filled.
func (s Snapshot) Seated() int {
	n := 0
	for _, t := range s.Teams {
		if t != nil {
			n++
		}
	}
	return n
}

// TeamName returns the display name in the given team slot, or "".
func (s Snapshot) TeamName(team int) string {
	if team < 1 || team > 2 || s.Teams[team-1] == nil {
		return ""
	}
	return s.Teams[team-1].Name
}

func (r *Room) snapshotLocked() Snapshot {
	snap := Snapshot{
		Code:         r.code,
		Host:         r.host,
		State:        r.state.clone(),
		Started:      r.started,
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
	}
	for i, t := range r.teams {
		if t != nil {
			seat := *t
			snap.Teams[i] = &seat
		}
	}
	return snap
}

// Status is the read-only answer to a pre-join lookup.
type Status struct {
	Exists  bool          `json:"exists"`
	Players map[Role]bool `json:"players,omitempty"`
}

// Removal describes the effect of RemoveParticipant.
type Removal struct {
	// Closed is true when the host left and the room was deleted.
	Closed bool
	// Seat is the seat that was vacated.
	Seat Seat
	// Stopped is true when the room fell back to waiting for players.
	Stopped bool
}

// Registry owns every live room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	src   Source
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithSource sets the randomness used for codes and dice.
func WithSource(src Source) Option {
	return func(r *Registry) { r.src = src }
}

// WithClock sets the time source used for activity tracking.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry returns an empty registry backed by crypto/rand and the wall clock
// unless overridden.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms: make(map[string]*Room),
		src:   NewCryptoSource(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", Errorf(CodeInvalidName, "display name is too long")
	}
	return name, nil
}

// CreateRoom allocates a fresh code and seats hostID as the host.
//
// Postcondition: the returned code is unique among live rooms.
func (r *Registry) CreateRoom(hostID, hostName string) (string, error) {
	name, err := validName(hostName)
	if err != nil {
		return "", err
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	code := newCode(r.src)
	for {
		if _, exists := r.rooms[code]; !exists {
			break
		}
		code = newCode(r.src)
	}

	r.rooms[code] = &Room{
		code:         code,
		host:         Seat{ID: hostID, Name: name},
		state:        initialState(),
		createdAt:    now,
		lastActivity: now,
	}

	return code, nil
}

func (r *Registry) lookup(code string) (*Room, error) {
	code, ok := NormalizeCode(code)
	if !ok {
		return nil, ErrInvalidCode
	}

	r.mu.RLock()
	rm, exists := r.rooms[code]
	r.mu.RUnlock()
	if !exists {
		return nil, ErrRoomNotFound
	}
	return rm, nil
}

// JoinRoom seats id in a team slot. A free requested slot is honoured;
// otherwise the first free slot is taken, team 1 before team 2. startedNow is
// true when this join filled the last empty slot.
func (r *Registry) JoinRoom(code, id, name string, requested Role) (role Role, snap Snapshot, startedNow bool, err error) {
	name, err = validName(name)
	if err != nil {
		return "", Snapshot{}, false, err
	}
	if _, ok := ParseRole(string(requested)); !ok {
		return "", Snapshot{}, false, ErrInvalidRole
	}

	rm, err := r.lookup(code)
	if err != nil {
		return "", Snapshot{}, false, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.host.ID == id {
		return "", Snapshot{}, false, ErrAlreadyInRoom
	}
	for _, t := range rm.teams {
		if t != nil && t.ID == id {
			return "", Snapshot{}, false, ErrAlreadyInRoom
		}
	}

	slot := -1
	if team := requested.Team(); team != 0 && rm.teams[team-1] == nil {
		slot = team - 1
	} else {
		for i, t := range rm.teams {
			if t == nil {
				slot = i
				break
			}
		}
	}
	if slot < 0 {
		return "", Snapshot{}, false, ErrRoomFull
	}

	rm.teams[slot] = &Seat{ID: id, Name: name}
	rm.lastActivity = r.now()

	if !rm.started && rm.teams[0] != nil && rm.teams[1] != nil {
		rm.started = true
		startedNow = true
	}

	return TeamRole(slot + 1), rm.snapshotLocked(), startedNow, nil
}

// CheckRoom reports whether code names a live room and which team slots are
// taken. It never fails; malformed codes simply do not exist.
func (r *Registry) CheckRoom(code string) Status {
	rm, err := r.lookup(code)
	if err != nil {
		return Status{}
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	return Status{
		Exists: true,
		Players: map[Role]bool{
			RolePlayer1: rm.teams[0] != nil,
			RolePlayer2: rm.teams[1] != nil,
		},
	}
}

// RemoveParticipant vacates the seat held by role. Removing the host deletes
// the room. When id is non-empty the seat must belong to it, so a stale leave
// can never clear a seat that was since taken by someone else.
func (r *Registry) RemoveParticipant(code string, role Role, id string) (Removal, error) {
	code, ok := NormalizeCode(code)
	if !ok {
		return Removal{}, ErrInvalidCode
	}

	if role == RoleHost {
		r.mu.Lock()
		defer r.mu.Unlock()

		rm, exists := r.rooms[code]
		if !exists {
			return Removal{}, ErrRoomNotFound
		}

		rm.mu.Lock()
		host := rm.host
		rm.mu.Unlock()

		if id != "" && host.ID != id {
			return Removal{}, Errorf(CodeNotInRoom, "not the host of this room")
		}

		delete(r.rooms, code)
		return Removal{Closed: true, Seat: host}, nil
	}

	team := role.Team()
	if team == 0 {
		return Removal{}, ErrInvalidRole
	}

	rm, err := r.lookup(code)
	if err != nil {
		return Removal{}, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	seat := rm.teams[team-1]
	if seat == nil || (id != "" && seat.ID != id) {
		return Removal{}, Errorf(CodeNotInRoom, "seat is not held by this connection")
	}

	rm.teams[team-1] = nil
	rm.lastActivity = r.now()

	removal := Removal{Seat: *seat}
	if rm.started {
		rm.started = false
		removal.Stopped = true
	}
	return removal, nil
}

// SweepIdle deletes every room whose last activity is older than maxAge and
// returns their codes in sorted order.
func (r *Registry) SweepIdle(maxAge time.Duration) []string {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for code, rm := range r.rooms {
		rm.mu.Lock()
		last := rm.lastActivity
		rm.mu.Unlock()

		if now.Sub(last) > maxAge {
			delete(r.rooms, code)
			removed = append(removed, code)
		}
	}

	sort.Strings(removed)
	return removed
}

// Touch refreshes the activity timestamp of a room.
func (r *Registry) Touch(code string) error {
	rm, err := r.lookup(code)
	if err != nil {
		return err
	}

	rm.mu.Lock()
	rm.lastActivity = r.now()
	rm.mu.Unlock()

	return nil
}

// Snapshot returns a copy of the room record.
func (r *Registry) Snapshot(code string) (Snapshot, error) {
	rm, err := r.lookup(code)
	if err != nil {
		return Snapshot{}, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	return rm.snapshotLocked(), nil
}

// List returns snapshots of every live room, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.Lock()
		out = append(out, rm.snapshotLocked())
		rm.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
