// Package dominoes implements four-player block dominoes as an engine module:
// two-ended board placement, pass and block detection, go-out and blocked-round
// Caribbean scoring.
package dominoes

import (
	"time"

	"github.com/parlorgames/parlord/pkg/engine"
)

// GameType is the registry id of this module.
const GameType = "dominoes"

// Phase is the discrete state of a dominoes game.
type Phase string

const (
	PhasePlaying      Phase = "playing"
	PhaseRoundSummary Phase = "round-summary"
	PhaseFinished     Phase = "finished"
)

// Side selects which end of the board a tile is placed on.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// PlayerRoundResult is one player's line in the round summary.
type PlayerRoundResult struct {
	PipCount int `json:"pipCount"`
	Earned   int `json:"earned"`
	NewScore int `json:"newScore"`
}

// State is the full dominoes game state.
type State struct {
	engine.Base

	PlayOrder         []string          `json:"playOrder"`
	StarterIndex      int               `json:"starterIndex"`
	CurrentTurnIndex  int               `json:"currentTurnIndex"`
	Hands             map[string][]Tile `json:"-"`
	Board             Board             `json:"board"`
	ConsecutivePasses int               `json:"consecutivePasses"`
	Phase             Phase             `json:"phase"`
	Round             int               `json:"round"`

	PlayerScores  map[string]int                `json:"playerScores"`
	RoundWinner   string                        `json:"roundWinner,omitempty"`
	RoundBlocked  bool                          `json:"roundBlocked"`
	IsTie         bool                          `json:"isTie"`
	RoundResults  map[string]*PlayerRoundResult `json:"roundResults,omitempty"`
	WinnerID      string                        `json:"winnerId,omitempty"`
	TurnStartedAt time.Time                     `json:"turnStartedAt"`

	// DealSeed drives the shuffle; each round derives its own source from
	// seed and round number.
	DealSeed int64 `json:"-"`
}

// Clone deep-copies the state.
func (st *State) Clone() engine.State {
	next := &State{
		StarterIndex:      st.StarterIndex,
		CurrentTurnIndex:  st.CurrentTurnIndex,
		ConsecutivePasses: st.ConsecutivePasses,
		Phase:             st.Phase,
		Round:             st.Round,
		RoundWinner:       st.RoundWinner,
		RoundBlocked:      st.RoundBlocked,
		IsTie:             st.IsTie,
		WinnerID:          st.WinnerID,
		TurnStartedAt:     st.TurnStartedAt,
		DealSeed:          st.DealSeed,
	}
	st.CloneBase(&next.Base)

	next.PlayOrder = append([]string(nil), st.PlayOrder...)
	next.Board = append(Board(nil), st.Board...)

	next.Hands = make(map[string][]Tile, len(st.Hands))
	for id, h := range st.Hands {
		next.Hands[id] = append([]Tile(nil), h...)
	}

	next.PlayerScores = make(map[string]int, len(st.PlayerScores))
	for id, s := range st.PlayerScores {
		next.PlayerScores[id] = s
	}

	if st.RoundResults != nil {
		next.RoundResults = make(map[string]*PlayerRoundResult, len(st.RoundResults))
		for id, r := range st.RoundResults {
			cp := *r
			next.RoundResults[id] = &cp
		}
	}
	return next
}

// Completed reports whether the game reached a terminal phase.
func (st *State) Completed() bool { return st.Phase == PhaseFinished }

// CurrentUserID returns the participant whose turn it is.
func (st *State) CurrentUserID() string {
	if st.CurrentTurnIndex < 0 || st.CurrentTurnIndex >= len(st.PlayOrder) {
		return ""
	}
	return st.PlayOrder[st.CurrentTurnIndex]
}

// PlaceTile is the placement action.
type PlaceTile struct {
	UserID string
	TileID string
	Side   Side
}

// Kind implements engine.Action.
func (PlaceTile) Kind() engine.ActionKind { return engine.ActionPlaceTile }

// Actor implements engine.Action.
func (a PlaceTile) Actor() string { return a.UserID }

// Pass is the no-legal-tile action.
type Pass struct {
	UserID string
}

// Kind implements engine.Action.
func (Pass) Kind() engine.ActionKind { return engine.ActionPass }

// Actor implements engine.Action.
func (a Pass) Actor() string { return a.UserID }
