package spades

import (
	"time"

	"github.com/parlorgames/parlord/pkg/cards"
	"github.com/parlorgames/parlord/pkg/engine"
)

// PublicView is the broadcast projection: no hands, per-player counts instead.
type PublicView struct {
	ID               string                        `json:"id"`
	RoomID           string                        `json:"roomId"`
	Type             string                        `json:"type"`
	Players          map[string]*engine.PlayerInfo `json:"players"`
	Teams            map[string]*Team              `json:"teams"`
	PlayOrder        []string                      `json:"playOrder"`
	DealerIndex      int                           `json:"dealerIndex"`
	CurrentTurnIndex int                           `json:"currentTurnIndex"`
	CurrentUserID    string                        `json:"currentUserId"`
	HandsCounts      map[string]int                `json:"handsCounts"`
	Bids             map[string]*Bid               `json:"bids"`
	SpadesBroken     bool                          `json:"spadesBroken"`
	CurrentTrick     *Trick                        `json:"currentTrick,omitempty"`
	CompletedTricks  int                           `json:"completedTricks"`
	Phase            Phase                         `json:"phase"`
	Round            int                           `json:"round"`
	Settings         engine.Settings               `json:"settings"`

	WinnerTeamID         string                     `json:"winnerTeamId,omitempty"`
	IsTie                bool                       `json:"isTie"`
	LastTrickWinnerID    string                     `json:"lastTrickWinnerId,omitempty"`
	LastTrickWinningCard *cards.Card                `json:"lastTrickWinningCard,omitempty"`
	RoundTrickCounts     map[string]int             `json:"roundTrickCounts"`
	RoundTeamScores      map[string]int             `json:"roundTeamScores,omitempty"`
	RoundScoreBreakdown  map[string]*TeamRoundScore `json:"roundScoreBreakdown,omitempty"`
	TeamEligibleForBlind map[string]bool            `json:"teamEligibleForBlind"`
	TurnStartedAt        time.Time                  `json:"turnStartedAt"`
}

// PlayerView is the unicast projection for one participant.
type PlayerView struct {
	PublicView

	Hand []cards.Card `json:"hand"`
	// LocalOrdering rotates the play order to start at this player's seat so
	// clients can render their own seat at the bottom.
	LocalOrdering []string `json:"localOrdering"`
}

// PublicState implements engine.Module.
func (*Module) PublicState(raw engine.State) interface{} {
	st := raw.(*State)
	return buildPublicView(st)
}

func buildPublicView(st *State) PublicView {
	counts := make(map[string]int, len(st.Hands))
	for id, h := range st.Hands {
		counts[id] = len(h)
	}
	return PublicView{
		ID:               st.ID(),
		RoomID:           st.Room(),
		Type:             st.GameType(),
		Players:          st.Players,
		Teams:            st.Teams,
		PlayOrder:        st.PlayOrder,
		DealerIndex:      st.DealerIndex,
		CurrentTurnIndex: st.CurrentTurnIndex,
		CurrentUserID:    st.CurrentUserID(),
		HandsCounts:      counts,
		Bids:             st.Bids,
		SpadesBroken:     st.SpadesBroken,
		CurrentTrick:     st.CurrentTrick,
		CompletedTricks:  len(st.CompletedTricks),
		Phase:            st.Phase,
		Round:            st.Round,
		Settings:         st.Settings,

		WinnerTeamID:         st.WinnerTeamID,
		IsTie:                st.IsTie,
		LastTrickWinnerID:    st.LastTrickWinnerID,
		LastTrickWinningCard: st.LastTrickWinningCard,
		RoundTrickCounts:     st.RoundTrickCounts,
		RoundTeamScores:      st.RoundTeamScores,
		RoundScoreBreakdown:  st.RoundScoreBreakdown,
		TeamEligibleForBlind: st.TeamEligibleForBlind,
		TurnStartedAt:        st.TurnStartedAt,
	}
}

// PlayerState implements engine.Module.
func (*Module) PlayerState(raw engine.State, userID string) interface{} {
	st := raw.(*State)
	view := PlayerView{
		PublicView: buildPublicView(st),
		Hand:       append([]cards.Card(nil), st.Hands[userID]...),
	}

	for seat, id := range st.PlayOrder {
		if id == userID {
			view.LocalOrdering = append(view.LocalOrdering, st.PlayOrder[seat:]...)
			view.LocalOrdering = append(view.LocalOrdering, st.PlayOrder[:seat]...)
			break
		}
	}
	if view.LocalOrdering == nil {
		view.LocalOrdering = append([]string(nil), st.PlayOrder...)
	}
	return view
}
