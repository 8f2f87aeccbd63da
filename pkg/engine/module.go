// Package engine holds the pluggable game-module framework: module metadata,
// the reducer contract, per-game settings schemas, and the registry that owns
// live game states.
package engine

import (
	"time"
)

// Settings is a validated settings bag for one game type. Values are the
// canonical forms produced by Validate: bool, float64, string, or nil for
// nullable numbers.
type Settings map[string]interface{}

// Clone returns a shallow copy. Settings values are scalars, so a shallow
// copy is a deep one.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// PlayerInfo is the engine's snapshot of a room user participating in a game.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	// Left marks a player who voluntarily abandoned the game. A left player
	// never reconnects; their seat is only refilled through a slot claim.
	Left bool `json:"left"`
}

// RoomInfo carries everything a module needs from the room to initialize a
// game. Users are in room join order; Teams may be nil for games without
// teams.
type RoomInfo struct {
	RoomID   string
	Users    []PlayerInfo
	LeaderID string
	Teams    [][]string
	Settings Settings
	// Seed fixes the deal RNG when non-zero. Zero means time-seeded.
	Seed int64
}

// HistoryEntry records one committed action, append-only and in commit order.
type HistoryEntry struct {
	Seq    int        `json:"seq"`
	Action ActionKind `json:"action"`
	Actor  string     `json:"actor"`
	At     time.Time  `json:"at"`
}

// State is a live game state owned by the registry. Implementations embed
// Base and must deep-copy themselves in Clone so a failed reduction never
// leaks partial mutation.
type State interface {
	ID() string
	Room() string
	GameType() string
	Clone() State
	appendHistory(HistoryEntry)
	historyLen() int
}

// Base carries the fields common to every game state.
type Base struct {
	GameID   string                 `json:"id"`
	RoomID   string                 `json:"roomId"`
	Type     string                 `json:"type"`
	Players  map[string]*PlayerInfo `json:"players"`
	LeaderID string                 `json:"leaderId"`
	Settings Settings               `json:"settings"`
	History  []HistoryEntry         `json:"history"`
}

// ID returns the game id.
func (b *Base) ID() string { return b.GameID }

// Room returns the owning room id.
func (b *Base) Room() string { return b.RoomID }

// GameType returns the module type id.
func (b *Base) GameType() string { return b.Type }

func (b *Base) appendHistory(e HistoryEntry) { b.History = append(b.History, e) }
func (b *Base) historyLen() int              { return len(b.History) }

// CloneBase deep-copies the shared fields into dst.
func (b *Base) CloneBase(dst *Base) {
	dst.GameID = b.GameID
	dst.RoomID = b.RoomID
	dst.Type = b.Type
	dst.LeaderID = b.LeaderID
	dst.Settings = b.Settings.Clone()
	dst.Players = make(map[string]*PlayerInfo, len(b.Players))
	for id, p := range b.Players {
		cp := *p
		dst.Players[id] = &cp
	}
	dst.History = make([]HistoryEntry, len(b.History))
	copy(dst.History, b.History)
}

// Meta describes a game module for discovery and room validation.
type Meta struct {
	Type           string       `json:"type"`
	DisplayName    string       `json:"displayName"`
	RequiresTeams  bool         `json:"requiresTeams"`
	MinPlayers     int          `json:"minPlayers"`
	MaxPlayers     int          `json:"maxPlayers"`
	NumTeams       int          `json:"numTeams,omitempty"`
	PlayersPerTeam int          `json:"playersPerTeam,omitempty"`
	Settings       []SettingDef `json:"settingsDefinitions"`
	Defaults       Settings     `json:"defaultSettings"`
}

// Module is a pluggable game implementation. Reduce must be pure with respect
// to its input: on error the input state is returned unchanged and no
// observable mutation has occurred.
type Module interface {
	Meta() Meta

	// Init builds the initial state for a game in the given room. Settings
	// have already been validated against the module's definitions.
	Init(room RoomInfo) (State, error)

	// Reduce applies one action, returning the successor state.
	Reduce(st State, act Action) (State, error)

	// PublicState projects st into the broadcast view: no hands, but
	// per-player hand counts.
	PublicState(st State) interface{}

	// PlayerState projects st for one player: their hand plus a localOrdering
	// rotation of the play order starting at their seat.
	PlayerState(st State, userID string) interface{}

	// CheckMinimumPlayers reports whether enough participants are connected
	// for play to proceed.
	CheckMinimumPlayers(st State) bool

	// HandleDisconnect and HandleReconnect flip participant connectivity.
	HandleDisconnect(st State, userID string) State
	HandleReconnect(st State, userID string) State

	// HandleLeave removes a player from active participation permanently;
	// the vacated seat can only be refilled via TransferSlot.
	HandleLeave(st State, userID string) State

	// TransferSlot rewrites fromID's seat to belong to toID, preserving hand,
	// bids, and scores.
	TransferSlot(st State, fromID, toID, toName string) (State, error)

	// CurrentTurn reports whose turn the current phase is waiting on and the
	// per-turn limit in seconds. ok is false when the phase is not
	// turn-timed (no limit configured, summaries, finished).
	CurrentTurn(st State) (userID string, timeoutSeconds int, ok bool)

	// AutoAction builds the action dispatched when the turn timer fires, or
	// nil when the phase has no sensible auto-action.
	AutoAction(st State) Action
}
