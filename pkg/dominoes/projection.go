package dominoes

import (
	"time"

	"github.com/parlorgames/parlord/pkg/engine"
)

// PublicView is the broadcast projection: tile counts instead of hands.
type PublicView struct {
	ID                string                        `json:"id"`
	RoomID            string                        `json:"roomId"`
	Type              string                        `json:"type"`
	Players           map[string]*engine.PlayerInfo `json:"players"`
	PlayOrder         []string                      `json:"playOrder"`
	StarterIndex      int                           `json:"starterIndex"`
	CurrentTurnIndex  int                           `json:"currentTurnIndex"`
	CurrentUserID     string                        `json:"currentUserId"`
	HandsCounts       map[string]int                `json:"handsCounts"`
	Board             Board                         `json:"board"`
	LeftEnd           *int                          `json:"leftEnd,omitempty"`
	RightEnd          *int                          `json:"rightEnd,omitempty"`
	ConsecutivePasses int                           `json:"consecutivePasses"`
	Phase             Phase                         `json:"phase"`
	Round             int                           `json:"round"`
	Settings          engine.Settings               `json:"settings"`

	PlayerScores  map[string]int                `json:"playerScores"`
	RoundWinner   string                        `json:"roundWinner,omitempty"`
	RoundBlocked  bool                          `json:"roundBlocked"`
	IsTie         bool                          `json:"isTie"`
	RoundResults  map[string]*PlayerRoundResult `json:"roundResults,omitempty"`
	WinnerID      string                        `json:"winnerId,omitempty"`
	TurnStartedAt time.Time                     `json:"turnStartedAt"`
}

// PlayerView adds the player's own tiles and seat rotation.
type PlayerView struct {
	PublicView

	Hand          []Tile   `json:"hand"`
	LocalOrdering []string `json:"localOrdering"`
}

// PublicState implements engine.Module.
func (*Module) PublicState(raw engine.State) interface{} {
	return buildPublicView(raw.(*State))
}

func buildPublicView(st *State) PublicView {
	counts := make(map[string]int, len(st.Hands))
	for id, h := range st.Hands {
		counts[id] = len(h)
	}
	view := PublicView{
		ID:                st.ID(),
		RoomID:            st.Room(),
		Type:              st.GameType(),
		Players:           st.Players,
		PlayOrder:         st.PlayOrder,
		StarterIndex:      st.StarterIndex,
		CurrentTurnIndex:  st.CurrentTurnIndex,
		CurrentUserID:     st.CurrentUserID(),
		HandsCounts:       counts,
		Board:             st.Board,
		ConsecutivePasses: st.ConsecutivePasses,
		Phase:             st.Phase,
		Round:             st.Round,
		Settings:          st.Settings,
		PlayerScores:      st.PlayerScores,
		RoundWinner:       st.RoundWinner,
		RoundBlocked:      st.RoundBlocked,
		IsTie:             st.IsTie,
		RoundResults:      st.RoundResults,
		WinnerID:          st.WinnerID,
		TurnStartedAt:     st.TurnStartedAt,
	}
	if v, ok := st.Board.LeftEnd(); ok {
		view.LeftEnd = &v
	}
	if v, ok := st.Board.RightEnd(); ok {
		view.RightEnd = &v
	}
	return view
}

// PlayerState implements engine.Module.
func (*Module) PlayerState(raw engine.State, userID string) interface{} {
	st := raw.(*State)
	view := PlayerView{
		PublicView: buildPublicView(st),
		Hand:       append([]Tile(nil), st.Hands[userID]...),
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
