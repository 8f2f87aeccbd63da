package dominoes

import (
	"math/rand"
	"time"

	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/errkind"
)

// Module implements engine.Module for block dominoes.
type Module struct{}

// New returns the dominoes module.
func New() *Module { return &Module{} }

var settingsDefinitions = []engine.SettingDef{
	{Key: "winTarget", Type: engine.SettingNumber, Default: float64(100),
		Min: engine.F(50), Max: engine.F(300), Step: engine.F(25), Label: "Points to win"},
	// Accepted and stored but not acted on; blocked players always pass.
	{Key: "drawFromBoneyard", Type: engine.SettingBoolean, Default: false, Label: "Draw from boneyard"},
	{Key: "turnTimeLimit", Type: engine.SettingNullableNumber, Default: nil,
		Min: engine.F(10), Max: engine.F(120), Step: engine.F(5), Label: "Turn time limit (seconds)"},
}

// Meta implements engine.Module.
func (*Module) Meta() engine.Meta {
	return engine.Meta{
		Type:        GameType,
		DisplayName: "Dominoes",
		MinPlayers:  4,
		MaxPlayers:  4,
		Settings:    settingsDefinitions,
		Defaults:    engine.DefaultsFrom(settingsDefinitions),
	}
}

// Init implements engine.Module. Players sit in room join order.
func (*Module) Init(room engine.RoomInfo) (engine.State, error) {
	if len(room.Users) != 4 {
		return nil, errkind.New(errkind.BadRequest, "dominoes requires exactly 4 players, got %d", len(room.Users))
	}

	seed := room.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	st := &State{
		Base: engine.Base{
			GameID:   engine.NewGameID(),
			RoomID:   room.RoomID,
			Type:     GameType,
			LeaderID: room.LeaderID,
			Settings: room.Settings.Clone(),
			Players:  make(map[string]*engine.PlayerInfo, 4),
		},
		Phase:        PhasePlaying,
		Round:        1,
		PlayerScores: make(map[string]int, 4),
		DealSeed:     seed,
	}
	for _, u := range room.Users {
		info := u
		info.Connected = true
		st.Players[u.ID] = &info
		st.PlayOrder = append(st.PlayOrder, u.ID)
		st.PlayerScores[u.ID] = 0
	}

	dealRound(st, rand.New(rand.NewSource(seed)))
	st.TurnStartedAt = time.Now()
	return st, nil
}

// dealRound deals fresh hands and picks the starter: the holder of the
// highest double, else the seat after the previous starter.
func dealRound(st *State, rng *rand.Rand) {
	hands := Deal(rng)
	st.Hands = make(map[string][]Tile, 4)
	for seat, id := range st.PlayOrder {
		st.Hands[id] = hands[seat]
	}

	if seat := highestDoubleHolder(st.PlayOrder, st.Hands); seat >= 0 {
		st.StarterIndex = seat
	} else if st.Round > 1 {
		st.StarterIndex = (st.StarterIndex + 1) % 4
	} else {
		st.StarterIndex = 0
	}
	st.CurrentTurnIndex = st.StarterIndex
	st.Board = nil
	st.ConsecutivePasses = 0
}

// Reduce implements engine.Module.
func (m *Module) Reduce(raw engine.State, act engine.Action) (engine.State, error) {
	st, ok := raw.(*State)
	if !ok {
		return nil, errkind.New(errkind.Internal, "dominoes reducer got %T", raw)
	}

	switch a := act.(type) {
	case PlaceTile:
		return m.reducePlace(st, a)
	case Pass:
		return m.reducePass(st, a)
	case engine.ContinueAfterRoundSummary:
		return m.reduceContinueRound(st, a)
	default:
		return nil, errkind.New(errkind.BadRequest, "dominoes does not handle action %s", act.Kind())
	}
}

func (m *Module) checkTurn(st *State, userID string) error {
	if st.Phase != PhasePlaying {
		return errkind.New(errkind.BadRequest, "the round is not in play")
	}
	if st.CurrentUserID() != userID {
		return errkind.New(errkind.BadRequest, "it is not your turn")
	}
	if p, ok := st.Players[userID]; !ok || !p.Connected {
		return errkind.New(errkind.BadRequest, "disconnected players cannot act")
	}
	return nil
}

func (m *Module) reducePlace(st *State, a PlaceTile) (engine.State, error) {
	if err := m.checkTurn(st, a.UserID); err != nil {
		return nil, err
	}

	hand := st.Hands[a.UserID]
	tileAt := -1
	for i, t := range hand {
		if t.ID == a.TileID {
			tileAt = i
			break
		}
	}
	if tileAt < 0 {
		return nil, errkind.New(errkind.BadRequest, "tile %s is not in your hand", a.TileID)
	}
	if a.Side != SideLeft && a.Side != SideRight {
		return nil, errkind.New(errkind.BadRequest, "side must be left or right")
	}
	if !st.Board.CanPlace(hand[tileAt], a.Side) {
		return nil, errkind.New(errkind.BadRequest, "tile %s does not fit on the %s end", a.TileID, a.Side)
	}

	next := st.Clone().(*State)
	tile := next.Hands[a.UserID][tileAt]
	next.Hands[a.UserID] = append(next.Hands[a.UserID][:tileAt], next.Hands[a.UserID][tileAt+1:]...)
	next.Board, _ = next.Board.Place(tile, a.Side)
	next.ConsecutivePasses = 0

	if len(next.Hands[a.UserID]) == 0 {
		finishRound(next, a.UserID)
		return next, nil
	}

	next.CurrentTurnIndex = (next.CurrentTurnIndex + 1) % 4
	next.TurnStartedAt = time.Now()
	return next, nil
}

func (m *Module) reducePass(st *State, a Pass) (engine.State, error) {
	if err := m.checkTurn(st, a.UserID); err != nil {
		return nil, err
	}
	if hasLegalMove(st.Hands[a.UserID], st.Board) {
		return nil, errkind.New(errkind.BadRequest, "you hold a playable tile and cannot pass")
	}

	next := st.Clone().(*State)
	next.ConsecutivePasses++
	if next.ConsecutivePasses >= 4 {
		finishRound(next, "")
		return next, nil
	}
	next.CurrentTurnIndex = (next.CurrentTurnIndex + 1) % 4
	next.TurnStartedAt = time.Now()
	return next, nil
}

// finishRound scores the round. goOutWinner is empty for a blocked round.
func finishRound(st *State, goOutWinner string) {
	pips := make(map[string]int, 4)
	for _, id := range st.PlayOrder {
		pips[id] = pipCount(st.Hands[id])
	}

	st.RoundBlocked = goOutWinner == ""
	st.IsTie = false
	st.RoundWinner = ""

	winner := goOutWinner
	if winner == "" {
		// Blocked: the single lowest pip count wins; a tie for lowest scores
		// nothing for anyone.
		lowest, count := -1, 0
		for _, id := range st.PlayOrder {
			switch {
			case lowest < 0 || pips[id] < lowest:
				lowest, count = pips[id], 1
			case pips[id] == lowest:
				count++
			}
		}
		if count > 1 {
			st.IsTie = true
		} else {
			for _, id := range st.PlayOrder {
				if pips[id] == lowest {
					winner = id
				}
			}
		}
	}

	earned := 0
	if winner != "" {
		for _, id := range st.PlayOrder {
			if id == winner {
				continue
			}
			if st.RoundBlocked {
				earned += pips[id] - pips[winner]
			} else {
				earned += pips[id]
			}
		}
		st.RoundWinner = winner
		st.PlayerScores[winner] += earned
	}

	st.RoundResults = make(map[string]*PlayerRoundResult, 4)
	for _, id := range st.PlayOrder {
		r := &PlayerRoundResult{PipCount: pips[id], NewScore: st.PlayerScores[id]}
		if id == winner {
			r.Earned = earned
		}
		st.RoundResults[id] = r
	}

	target := st.Settings.Int("winTarget", 100)
	best, bestID := -1, ""
	for _, id := range st.PlayOrder {
		if st.PlayerScores[id] >= target && st.PlayerScores[id] > best {
			best, bestID = st.PlayerScores[id], id
		}
	}
	if bestID != "" {
		st.Phase = PhaseFinished
		st.WinnerID = bestID
	} else {
		st.Phase = PhaseRoundSummary
	}
}

func (m *Module) reduceContinueRound(st *State, a engine.ContinueAfterRoundSummary) (engine.State, error) {
	if st.Phase != PhaseRoundSummary {
		return nil, errkind.New(errkind.BadRequest, "no round summary to continue from")
	}
	if _, ok := st.Players[a.UserID]; !ok {
		return nil, errkind.New(errkind.Forbidden, "only participants can continue the game")
	}

	next := st.Clone().(*State)
	next.Round++
	next.RoundWinner = ""
	next.RoundBlocked = false
	next.IsTie = false
	next.RoundResults = nil
	dealRound(next, rand.New(rand.NewSource(next.DealSeed+int64(next.Round))))
	next.Phase = PhasePlaying
	next.TurnStartedAt = time.Now()
	return next, nil
}

// CheckMinimumPlayers implements engine.Module.
func (*Module) CheckMinimumPlayers(raw engine.State) bool {
	st := raw.(*State)
	for _, id := range st.PlayOrder {
		p, ok := st.Players[id]
		if !ok || !p.Connected || p.Left {
			return false
		}
	}
	return true
}

// HandleDisconnect implements engine.Module.
func (*Module) HandleDisconnect(raw engine.State, userID string) engine.State {
	next := raw.Clone().(*State)
	if p, ok := next.Players[userID]; ok {
		p.Connected = false
	}
	return next
}

// HandleReconnect implements engine.Module.
func (*Module) HandleReconnect(raw engine.State, userID string) engine.State {
	next := raw.Clone().(*State)
	if p, ok := next.Players[userID]; ok && !p.Left {
		p.Connected = true
	}
	return next
}

// HandleLeave implements engine.Module.
func (*Module) HandleLeave(raw engine.State, userID string) engine.State {
	next := raw.Clone().(*State)
	if p, ok := next.Players[userID]; ok {
		p.Connected = false
		p.Left = true
	}
	return next
}

// TransferSlot implements engine.Module.
func (*Module) TransferSlot(raw engine.State, fromID, toID, toName string) (engine.State, error) {
	st := raw.(*State)
	if _, ok := st.Players[fromID]; !ok {
		return nil, errkind.New(errkind.NotFound, "player %s is not in this game", fromID)
	}
	if _, taken := st.Players[toID]; taken {
		return nil, errkind.New(errkind.Conflict, "user %s is already in this game", toID)
	}

	next := st.Clone().(*State)
	delete(next.Players, fromID)
	next.Players[toID] = &engine.PlayerInfo{ID: toID, Name: toName, Connected: true}
	for seat, id := range next.PlayOrder {
		if id == fromID {
			next.PlayOrder[seat] = toID
		}
	}
	if h, ok := next.Hands[fromID]; ok {
		next.Hands[toID] = h
		delete(next.Hands, fromID)
	}
	if s, ok := next.PlayerScores[fromID]; ok {
		next.PlayerScores[toID] = s
		delete(next.PlayerScores, fromID)
	}
	if r, ok := next.RoundResults[fromID]; ok {
		next.RoundResults[toID] = r
		delete(next.RoundResults, fromID)
	}
	if next.RoundWinner == fromID {
		next.RoundWinner = toID
	}
	return next, nil
}

// CurrentTurn implements engine.Module.
func (*Module) CurrentTurn(raw engine.State) (string, int, bool) {
	st := raw.(*State)
	if st.Phase != PhasePlaying {
		return "", 0, false
	}
	limit, ok := st.Settings.NullableInt("turnTimeLimit")
	if !ok {
		return "", 0, false
	}
	return st.CurrentUserID(), limit, true
}

// AutoAction implements engine.Module: the first legal placement, or a pass
// when nothing fits.
func (*Module) AutoAction(raw engine.State) engine.Action {
	st := raw.(*State)
	if st.Phase != PhasePlaying {
		return nil
	}
	userID := st.CurrentUserID()
	if userID == "" {
		return nil
	}
	for _, t := range st.Hands[userID] {
		for _, side := range []Side{SideLeft, SideRight} {
			if st.Board.CanPlace(t, side) {
				return PlaceTile{UserID: userID, TileID: t.ID, Side: side}
			}
		}
	}
	return Pass{UserID: userID}
}
