// Package spades implements the four-player partnership trick-taking game as
// an engine module: bidding with nil and blind variants, legal-play
// enforcement with spades as trump, trick resolution, and round scoring with
// bag penalties.
package spades

import (
	"time"

	"github.com/parlorgames/parlord/pkg/cards"
	"github.com/parlorgames/parlord/pkg/engine"
)

// GameType is the registry id of this module.
const GameType = "spades"

// Phase is the discrete state of a spades game.
type Phase string

const (
	PhaseBidding      Phase = "bidding"
	PhasePlaying      Phase = "playing"
	PhaseTrickResult  Phase = "trick-result"
	PhaseRoundSummary Phase = "round-summary"
	PhaseFinished     Phase = "finished"
)

// BidType discriminates the bid variants.
type BidType string

const (
	BidNormal   BidType = "normal"
	BidNil      BidType = "nil"
	BidBlind    BidType = "blind"
	BidBlindNil BidType = "blind-nil"
)

// Bid is one player's declared bid for the round.
type Bid struct {
	Amount  int     `json:"amount"`
	Type    BidType `json:"type"`
	IsBlind bool    `json:"isBlind"`
}

// Team is one of the two partnerships.
type Team struct {
	Players         []string `json:"players"`
	Score           int      `json:"score"`
	AccumulatedBags int      `json:"accumulatedBags"`
}

// TrickPlay is a single card played into a trick.
type TrickPlay struct {
	UserID string     `json:"userId"`
	Card   cards.Card `json:"card"`
}

// Trick is one round of four plays. WinnerID is set once the fourth card
// lands; the trick moves to the completed list when play continues.
type Trick struct {
	Plays    []TrickPlay `json:"plays"`
	LeadSuit cards.Suit  `json:"leadSuit,omitempty"`
	WinnerID string      `json:"winnerId,omitempty"`
}

// State is the full spades game state.
type State struct {
	engine.Base

	Teams            map[string]*Team       `json:"teams"`
	PlayOrder        []string               `json:"playOrder"`
	DealerIndex      int                    `json:"dealerIndex"`
	CurrentTurnIndex int                    `json:"currentTurnIndex"`
	Hands            map[string][]cards.Card `json:"-"`
	Bids             map[string]*Bid        `json:"bids"`
	SpadesBroken     bool                   `json:"spadesBroken"`
	CurrentTrick     *Trick                 `json:"currentTrick,omitempty"`
	CompletedTricks  []Trick                `json:"completedTricks"`
	Phase            Phase                  `json:"phase"`
	Round            int                    `json:"round"`

	WinnerTeamID         string                     `json:"winnerTeamId,omitempty"`
	IsTie                bool                       `json:"isTie"`
	LastTrickWinnerID    string                     `json:"lastTrickWinnerId,omitempty"`
	LastTrickWinningCard *cards.Card                `json:"lastTrickWinningCard,omitempty"`
	RoundTrickCounts     map[string]int             `json:"roundTrickCounts"`
	RoundTeamScores      map[string]int             `json:"roundTeamScores,omitempty"`
	RoundScoreBreakdown  map[string]*TeamRoundScore `json:"roundScoreBreakdown,omitempty"`
	TeamEligibleForBlind map[string]bool            `json:"teamEligibleForBlind"`
	TurnStartedAt        time.Time                  `json:"turnStartedAt"`

	// DealSeed drives the shuffle; each round derives its own source from
	// seed and round number so redeals stay reproducible.
	DealSeed int64 `json:"-"`
}

// Clone deep-copies the state.
func (st *State) Clone() engine.State {
	next := &State{
		DealerIndex:       st.DealerIndex,
		CurrentTurnIndex:  st.CurrentTurnIndex,
		SpadesBroken:      st.SpadesBroken,
		Phase:             st.Phase,
		Round:             st.Round,
		WinnerTeamID:      st.WinnerTeamID,
		IsTie:             st.IsTie,
		LastTrickWinnerID: st.LastTrickWinnerID,
		TurnStartedAt:     st.TurnStartedAt,
		DealSeed:          st.DealSeed,
	}
	st.CloneBase(&next.Base)

	next.PlayOrder = append([]string(nil), st.PlayOrder...)

	next.Teams = make(map[string]*Team, len(st.Teams))
	for id, t := range st.Teams {
		next.Teams[id] = &Team{
			Players:         append([]string(nil), t.Players...),
			Score:           t.Score,
			AccumulatedBags: t.AccumulatedBags,
		}
	}

	next.Hands = make(map[string][]cards.Card, len(st.Hands))
	for id, h := range st.Hands {
		next.Hands[id] = append([]cards.Card(nil), h...)
	}

	next.Bids = make(map[string]*Bid, len(st.Bids))
	for id, b := range st.Bids {
		cp := *b
		next.Bids[id] = &cp
	}

	if st.CurrentTrick != nil {
		next.CurrentTrick = cloneTrick(*st.CurrentTrick)
	}
	next.CompletedTricks = make([]Trick, 0, len(st.CompletedTricks))
	for _, t := range st.CompletedTricks {
		next.CompletedTricks = append(next.CompletedTricks, *cloneTrick(t))
	}

	if st.LastTrickWinningCard != nil {
		c := *st.LastTrickWinningCard
		next.LastTrickWinningCard = &c
	}

	next.RoundTrickCounts = cloneIntMap(st.RoundTrickCounts)
	next.RoundTeamScores = cloneIntMap(st.RoundTeamScores)

	if st.RoundScoreBreakdown != nil {
		next.RoundScoreBreakdown = make(map[string]*TeamRoundScore, len(st.RoundScoreBreakdown))
		for id, b := range st.RoundScoreBreakdown {
			cp := *b
			next.RoundScoreBreakdown[id] = &cp
		}
	}

	next.TeamEligibleForBlind = make(map[string]bool, len(st.TeamEligibleForBlind))
	for id, v := range st.TeamEligibleForBlind {
		next.TeamEligibleForBlind[id] = v
	}

	return next
}

func cloneTrick(t Trick) *Trick {
	cp := t
	cp.Plays = append([]TrickPlay(nil), t.Plays...)
	return &cp
}

func cloneIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TeamOfSeat maps a seat index in PlayOrder to its team id. Seats i and i+2
// are teammates, so parity identifies the team.
func TeamOfSeat(seat int) string {
	if seat%2 == 0 {
		return "team1"
	}
	return "team2"
}

// TeamOfUser returns the team id of a participant, or "".
func (st *State) TeamOfUser(userID string) string {
	for seat, id := range st.PlayOrder {
		if id == userID {
			return TeamOfSeat(seat)
		}
	}
	return ""
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

// PlaceBid is the bidding-phase action.
type PlaceBid struct {
	UserID  string
	Amount  int
	BidType BidType
}

// Kind implements engine.Action.
func (PlaceBid) Kind() engine.ActionKind { return engine.ActionPlaceBid }

// Actor implements engine.Action.
func (a PlaceBid) Actor() string { return a.UserID }

// PlayCard is the playing-phase action.
type PlayCard struct {
	UserID string
	Card   cards.Card
}

// Kind implements engine.Action.
func (PlayCard) Kind() engine.ActionKind { return engine.ActionPlayCard }

// Actor implements engine.Action.
func (a PlayCard) Actor() string { return a.UserID }
