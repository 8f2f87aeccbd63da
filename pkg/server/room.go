package server

import (
	"sync"
	"time"

	"github.com/parlorgames/parlord/pkg/statemachine"
)

// RoomState is the discrete lifecycle state of a room.
type RoomState string

const (
	RoomStateLobby  RoomState = "lobby"
	RoomStateInGame RoomState = "in-game"
	RoomStateEnded  RoomState = "ended"
)

// EmptySlot is the sentinel marking an unassigned team seat.
const EmptySlot = ""

// User is a room member.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`

	// everConnected records whether the user ever held a socket here, so a
	// first attach is not announced as a reconnect.
	everConnected bool
}

// RoomSettings are the room-level settings, distinct from per-game settings.
type RoomSettings struct {
	IsPrivate  bool `json:"isPrivate"`
	MaxPlayers int  `json:"maxPlayers,omitempty"`
}

// JoinRequest is one pending private-room join request. Attempts is monotone
// and survives rejection so rate limits cannot be reset by re-requesting.
type JoinRequest struct {
	RequesterID   string    `json:"requesterId"`
	RequesterName string    `json:"requesterName"`
	RequestedAt   time.Time `json:"requestedAt"`
	Attempts      int       `json:"attempts"`
}

// Room is one live room. Fields are guarded by mu; the lock order is always
// Server.mu before Room.mu.
type Room struct {
	mu        sync.RWMutex
	lifecycle *statemachine.Machine[Room]

	ID               string
	Code             string
	Name             string
	Users            []*User
	LeaderID         string
	ReadyStates      map[string]bool
	State            RoomState
	GameID           string
	SelectedGameType string
	CreatedAt        time.Time
	Teams            [][]string
	Settings         RoomSettings
	// GameSettings keeps the last-edited settings per game type so switching
	// games and back does not lose edits.
	GameSettings  map[string]map[string]interface{}
	IsPaused      bool
	PausedAt      *time.Time
	TimeoutAt     *time.Time
	Spectators    []string
	KickedUserIDs map[string]bool

	JoinRequests map[string]*JoinRequest

	deleteTimer    *time.Timer
	reconnectTimer *time.Timer
}

// Lifecycle state functions. Each stamps the observable state and terminates;
// transitions happen by dispatching the target state.
func stateLobby(r *Room) statemachine.StateFn[Room] {
	r.State = RoomStateLobby
	return nil
}

func stateInGame(r *Room) statemachine.StateFn[Room] {
	r.State = RoomStateInGame
	return nil
}

func stateEnded(r *Room) statemachine.StateFn[Room] {
	r.State = RoomStateEnded
	return nil
}

func newRoom(id, code, name string, creator *User, settings RoomSettings) *Room {
	r := &Room{
		ID:            id,
		Code:          code,
		Name:          name,
		Users:         []*User{creator},
		LeaderID:      creator.ID,
		ReadyStates:   map[string]bool{creator.ID: false},
		CreatedAt:     time.Now(),
		Settings:      settings,
		GameSettings:  make(map[string]map[string]interface{}),
		KickedUserIDs: make(map[string]bool),
		JoinRequests:  make(map[string]*JoinRequest),
	}
	r.lifecycle = statemachine.New(r, stateLobby)
	r.lifecycle.Dispatch(stateLobby)
	return r
}

// user returns the member with the given id, or nil.
func (r *Room) user(userID string) *User {
	for _, u := range r.Users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

func (r *Room) isSpectator(userID string) bool {
	for _, id := range r.Spectators {
		if id == userID {
			return true
		}
	}
	return false
}

// removeUser drops a member from users, ready states, spectators, and team
// slots. Team slots are replaced with the empty-slot sentinel, not compacted.
func (r *Room) removeUser(userID string) {
	for i, u := range r.Users {
		if u.ID == userID {
			r.Users = append(r.Users[:i], r.Users[i+1:]...)
			break
		}
	}
	delete(r.ReadyStates, userID)
	for i, id := range r.Spectators {
		if id == userID {
			r.Spectators = append(r.Spectators[:i], r.Spectators[i+1:]...)
			break
		}
	}
	r.clearTeamSlot(userID)
}

func (r *Room) clearTeamSlot(userID string) {
	for _, team := range r.Teams {
		for i, id := range team {
			if id == userID {
				team[i] = EmptySlot
			}
		}
	}
}

// promoteLeader installs a replacement when the leader is gone. In-game rooms
// prefer a connected user; lobby rooms take the first remaining user, who may
// not have attached a socket yet. It reports whether the leader changed.
func (r *Room) promoteLeader() bool {
	if len(r.Users) == 0 {
		r.LeaderID = ""
		return false
	}
	if u := r.user(r.LeaderID); u != nil {
		return false
	}
	if r.State == RoomStateInGame {
		for _, u := range r.Users {
			if u.Connected {
				r.LeaderID = u.ID
				return true
			}
		}
	}
	r.LeaderID = r.Users[0].ID
	return true
}

// connectedCount reports how many members are currently connected.
func (r *Room) connectedCount() int {
	n := 0
	for _, u := range r.Users {
		if u.Connected {
			n++
		}
	}
	return n
}

// RoomSnapshot is the serializable copy of a room used in event envelopes and
// HTTP responses.
type RoomSnapshot struct {
	ID               string                            `json:"id"`
	Code             string                            `json:"code"`
	Name             string                            `json:"name"`
	Users            []User                            `json:"users"`
	LeaderID         string                            `json:"leaderId"`
	ReadyStates      map[string]bool                   `json:"readyStates"`
	State            RoomState                         `json:"state"`
	GameID           string                            `json:"gameId,omitempty"`
	SelectedGameType string                            `json:"selectedGameType,omitempty"`
	CreatedAt        time.Time                         `json:"createdAt"`
	Teams            [][]string                        `json:"teams,omitempty"`
	Settings         RoomSettings                      `json:"settings"`
	GameSettings     map[string]map[string]interface{} `json:"gameSettings,omitempty"`
	IsPaused         bool                              `json:"isPaused"`
	PausedAt         *time.Time                        `json:"pausedAt,omitempty"`
	TimeoutAt        *time.Time                        `json:"timeoutAt,omitempty"`
	Spectators       []string                          `json:"spectators,omitempty"`
}

// snapshot copies the observable room state. Callers must hold at least a
// read lock on the room.
func (r *Room) snapshot() RoomSnapshot {
	snap := RoomSnapshot{
		ID:               r.ID,
		Code:             r.Code,
		Name:             r.Name,
		LeaderID:         r.LeaderID,
		State:            r.State,
		GameID:           r.GameID,
		SelectedGameType: r.SelectedGameType,
		CreatedAt:        r.CreatedAt,
		Settings:         r.Settings,
		IsPaused:         r.IsPaused,
		PausedAt:         r.PausedAt,
		TimeoutAt:        r.TimeoutAt,
	}
	for _, u := range r.Users {
		snap.Users = append(snap.Users, *u)
	}
	snap.ReadyStates = make(map[string]bool, len(r.ReadyStates))
	for id, ready := range r.ReadyStates {
		snap.ReadyStates[id] = ready
	}
	for _, team := range r.Teams {
		snap.Teams = append(snap.Teams, append([]string(nil), team...))
	}
	if len(r.GameSettings) > 0 {
		snap.GameSettings = make(map[string]map[string]interface{}, len(r.GameSettings))
		for typ, settings := range r.GameSettings {
			cp := make(map[string]interface{}, len(settings))
			for k, v := range settings {
				cp[k] = v
			}
			snap.GameSettings[typ] = cp
		}
	}
	snap.Spectators = append([]string(nil), r.Spectators...)
	return snap
}
