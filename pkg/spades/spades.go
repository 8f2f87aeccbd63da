package spades

import (
	"math/rand"
	"time"

	"github.com/parlorgames/parlord/pkg/cards"
	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/errkind"
)

// Module implements engine.Module for spades.
type Module struct{}

// New returns the spades module.
func New() *Module { return &Module{} }

// settingsDefinitions is the published schema for spades settings.
var settingsDefinitions = []engine.SettingDef{
	{Key: "winTarget", Type: engine.SettingNumber, Default: float64(500),
		Min: engine.F(100), Max: engine.F(1000), Step: engine.F(50), Label: "Points to win"},
	{Key: "allowNil", Type: engine.SettingBoolean, Default: true, Label: "Allow nil bids"},
	{Key: "blindBidEnabled", Type: engine.SettingBoolean, Default: false, Label: "Allow blind bids"},
	{Key: "blindNilEnabled", Type: engine.SettingBoolean, Default: false, Label: "Allow blind nil",
		DependsOn: &engine.Dependency{Key: "allowNil", Value: true}},
	{Key: "jokersEnabled", Type: engine.SettingBoolean, Default: false, Label: "Play with jokers"},
	{Key: "deuceOfSpadesHigh", Type: engine.SettingBoolean, Default: false, Label: "2♠ beats A♠"},
	// Configured negative, applied as a positive deduction when a team
	// collects its tenth bag.
	{Key: "bagsPenalty", Type: engine.SettingNumber, Default: float64(-100),
		Min: engine.F(-200), Max: engine.F(-50), Step: engine.F(10), Label: "Bag penalty"},
	{Key: "turnTimeLimit", Type: engine.SettingNullableNumber, Default: nil,
		Min: engine.F(10), Max: engine.F(120), Step: engine.F(5), Label: "Turn time limit (seconds)"},
}

// Meta implements engine.Module.
func (*Module) Meta() engine.Meta {
	return engine.Meta{
		Type:           GameType,
		DisplayName:    "Spades",
		RequiresTeams:  true,
		MinPlayers:     4,
		MaxPlayers:     4,
		NumTeams:       2,
		PlayersPerTeam: 2,
		Settings:       settingsDefinitions,
		Defaults:       engine.DefaultsFrom(settingsDefinitions),
	}
}

// blindDeficit is the score gap to the leading team that makes a team
// eligible for blind bids.
const blindDeficit = 100

// Init implements engine.Module. Teams must arrive strict-validated: two
// teams of two current members each.
func (*Module) Init(room engine.RoomInfo) (engine.State, error) {
	if len(room.Users) != 4 {
		return nil, errkind.New(errkind.BadRequest, "spades requires exactly 4 players, got %d", len(room.Users))
	}
	if len(room.Teams) != 2 || len(room.Teams[0]) != 2 || len(room.Teams[1]) != 2 {
		return nil, errkind.New(errkind.BadRequest, "spades requires 2 teams of 2 players")
	}

	seed := room.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	st := &State{
		Base: engine.Base{
			GameID:   engine.NewGameID(),
			RoomID:   room.RoomID,
			Type:     GameType,
			LeaderID: room.LeaderID,
			Settings: room.Settings.Clone(),
			Players:  make(map[string]*engine.PlayerInfo, 4),
		},
		// Alternate teams so seat parity identifies the team: seats 0 and 2
		// are team1, seats 1 and 3 are team2.
		PlayOrder: []string{room.Teams[0][0], room.Teams[1][0], room.Teams[0][1], room.Teams[1][1]},
		Teams: map[string]*Team{
			"team1": {Players: append([]string(nil), room.Teams[0]...)},
			"team2": {Players: append([]string(nil), room.Teams[1]...)},
		},
		Bids:                 make(map[string]*Bid),
		Hands:                make(map[string][]cards.Card),
		Phase:                PhaseBidding,
		Round:                1,
		RoundTrickCounts:     map[string]int{"team1": 0, "team2": 0},
		TeamEligibleForBlind: map[string]bool{"team1": false, "team2": false},
		DealSeed:             seed,
	}

	for _, u := range room.Users {
		info := u
		info.Connected = true
		st.Players[u.ID] = &info
	}
	for _, id := range st.PlayOrder {
		if _, ok := st.Players[id]; !ok {
			return nil, errkind.New(errkind.BadRequest, "team member %s is not in the room", id)
		}
	}

	st.DealerIndex = rng.Intn(4)
	st.CurrentTurnIndex = st.DealerIndex
	dealHands(st, rng)
	st.TurnStartedAt = time.Now()
	return st, nil
}

// dealHands builds, shuffles, and deals the deck for the current round.
func dealHands(st *State, rng *rand.Rand) {
	rules := rulesFrom(st.Settings)
	deck := cards.NewSpadesDeck(rules.jokersEnabled)
	cards.Shuffle(deck, rng)
	hands := cards.DealRoundRobin(deck, 4)
	for seat, id := range st.PlayOrder {
		cards.SortHand(hands[seat], rules.deuceHigh)
		st.Hands[id] = hands[seat]
	}
}

// roundRNG derives the deal source for a round so redeals are reproducible
// under a fixed seed.
func roundRNG(st *State) *rand.Rand {
	return rand.New(rand.NewSource(st.DealSeed + int64(st.Round)))
}

// Reduce implements engine.Module. It validates against the current state and
// mutates only a clone, so failures never leave partial state behind.
func (m *Module) Reduce(raw engine.State, act engine.Action) (engine.State, error) {
	st, ok := raw.(*State)
	if !ok {
		return nil, errkind.New(errkind.Internal, "spades reducer got %T", raw)
	}

	switch a := act.(type) {
	case PlaceBid:
		return m.reduceBid(st, a)
	case PlayCard:
		return m.reducePlay(st, a)
	case engine.ContinueAfterTrickResult:
		return m.reduceContinueTrick(st, a)
	case engine.ContinueAfterRoundSummary:
		return m.reduceContinueRound(st, a)
	default:
		return nil, errkind.New(errkind.BadRequest, "spades does not handle action %s", act.Kind())
	}
}

func (m *Module) reduceBid(st *State, a PlaceBid) (engine.State, error) {
	if st.Phase != PhaseBidding {
		return nil, errkind.New(errkind.BadRequest, "bids are only accepted during bidding")
	}
	if st.CurrentUserID() != a.UserID {
		return nil, errkind.New(errkind.BadRequest, "it is not your turn to bid")
	}
	if p, ok := st.Players[a.UserID]; !ok || !p.Connected {
		return nil, errkind.New(errkind.BadRequest, "disconnected players cannot bid")
	}
	if _, already := st.Bids[a.UserID]; already {
		return nil, errkind.New(errkind.Conflict, "you have already bid this round")
	}

	team := st.TeamOfUser(a.UserID)
	eligible := st.TeamEligibleForBlind[team]

	switch a.BidType {
	case BidNormal:
		if a.Amount < 1 || a.Amount > 13 {
			return nil, errkind.New(errkind.BadRequest, "a bid must be between 1 and 13 tricks")
		}
	case BidNil:
		if a.Amount != 0 {
			return nil, errkind.New(errkind.BadRequest, "a nil bid is a bid of zero")
		}
		if !st.Settings.Bool("allowNil", true) {
			return nil, errkind.New(errkind.BadRequest, "nil bids are disabled in this room")
		}
	case BidBlind:
		if !st.Settings.Bool("blindBidEnabled", false) {
			return nil, errkind.New(errkind.BadRequest, "blind bids are disabled in this room")
		}
		if a.Amount < 4 {
			return nil, errkind.New(errkind.BadRequest, "a blind bid must be at least 4 tricks")
		}
		if !eligible {
			return nil, errkind.New(errkind.BadRequest, "your team is not eligible to bid blind")
		}
	case BidBlindNil:
		if a.Amount != 0 {
			return nil, errkind.New(errkind.BadRequest, "a blind nil bid is a bid of zero")
		}
		if !st.Settings.Bool("blindNilEnabled", false) || !st.Settings.Bool("allowNil", true) {
			return nil, errkind.New(errkind.BadRequest, "blind nil bids are disabled in this room")
		}
		if !eligible {
			return nil, errkind.New(errkind.BadRequest, "your team is not eligible to bid blind nil")
		}
	default:
		return nil, errkind.New(errkind.BadRequest, "unknown bid type %q", a.BidType)
	}

	next := st.Clone().(*State)
	next.Bids[a.UserID] = &Bid{
		Amount:  a.Amount,
		Type:    a.BidType,
		IsBlind: a.BidType == BidBlind || a.BidType == BidBlindNil,
	}
	next.CurrentTurnIndex = (next.CurrentTurnIndex + 1) % 4
	if len(next.Bids) == 4 {
		next.Phase = PhasePlaying
	}
	next.TurnStartedAt = time.Now()
	return next, nil
}

func (m *Module) reducePlay(st *State, a PlayCard) (engine.State, error) {
	if st.Phase != PhasePlaying {
		return nil, errkind.New(errkind.BadRequest, "cards can only be played during the playing phase")
	}
	if st.CurrentUserID() != a.UserID {
		return nil, errkind.New(errkind.BadRequest, "it is not your turn to play")
	}
	if p, ok := st.Players[a.UserID]; !ok || !p.Connected {
		return nil, errkind.New(errkind.BadRequest, "disconnected players cannot play")
	}
	hand := st.Hands[a.UserID]
	if !cards.Contains(hand, a.Card) {
		return nil, errkind.New(errkind.BadRequest, "that card is not in your hand")
	}
	if !canPlayCard(a.Card, hand, st.CurrentTrick, st.SpadesBroken) {
		if st.CurrentTrick == nil || len(st.CurrentTrick.Plays) == 0 {
			return nil, errkind.New(errkind.BadRequest, "spades cannot be led until they are broken")
		}
		return nil, errkind.New(errkind.BadRequest, "you must follow the led suit while you hold it")
	}

	next := st.Clone().(*State)
	rules := rulesFrom(next.Settings)

	next.Hands[a.UserID], _ = cards.Remove(next.Hands[a.UserID], a.Card)
	if next.CurrentTrick == nil {
		next.CurrentTrick = &Trick{}
	}
	leading := len(next.CurrentTrick.Plays) == 0
	next.CurrentTrick.Plays = append(next.CurrentTrick.Plays, TrickPlay{UserID: a.UserID, Card: a.Card})
	if leading {
		next.CurrentTrick.LeadSuit = a.Card.Suit
	}
	if a.Card.Suit == cards.Spades && !leading {
		next.SpadesBroken = true
	}

	if len(next.CurrentTrick.Plays) == 4 {
		winner := resolveTrickWinner(next.CurrentTrick, rules)
		next.CurrentTrick.WinnerID = winner.UserID
		next.LastTrickWinnerID = winner.UserID
		card := winner.Card
		next.LastTrickWinningCard = &card
		next.RoundTrickCounts[next.TeamOfUser(winner.UserID)]++

		if handsEmpty(next) {
			// Final trick: fold it into the completed list and score the
			// round immediately.
			next.CompletedTricks = append(next.CompletedTricks, *next.CurrentTrick)
			next.CurrentTrick = nil
			finishRound(next)
			return next, nil
		}

		// The trick stays current through the result phase so clients can
		// show all four cards; it moves to the completed list on continue.
		next.Phase = PhaseTrickResult
		return next, nil
	}

	next.CurrentTurnIndex = (next.CurrentTurnIndex + 1) % 4
	next.TurnStartedAt = time.Now()
	return next, nil
}

func handsEmpty(st *State) bool {
	for _, h := range st.Hands {
		if len(h) > 0 {
			return false
		}
	}
	return true
}

// finishRound scores the completed round and either declares a winner or
// parks the game in the round summary.
func finishRound(st *State) {
	breakdown := scoreRound(st)
	st.RoundScoreBreakdown = breakdown
	st.RoundTeamScores = make(map[string]int, len(breakdown))
	for teamID, b := range breakdown {
		team := st.Teams[teamID]
		team.Score = b.NewScore
		team.AccumulatedBags = b.NewAccumulatedBags
		st.RoundTeamScores[teamID] = b.RoundScore
	}

	target := st.Settings.Int("winTarget", 500)
	var reached []string
	for teamID, team := range st.Teams {
		if team.Score >= target {
			reached = append(reached, teamID)
		}
	}

	switch len(reached) {
	case 0:
		st.Phase = PhaseRoundSummary
	case 1:
		st.Phase = PhaseFinished
		st.WinnerTeamID = reached[0]
	default:
		// Both teams crossed the target in the same round: higher total wins,
		// equal totals finish as a tie with no winner.
		a, b := st.Teams[reached[0]], st.Teams[reached[1]]
		st.Phase = PhaseFinished
		switch {
		case a.Score > b.Score:
			st.WinnerTeamID = reached[0]
		case b.Score > a.Score:
			st.WinnerTeamID = reached[1]
		default:
			st.IsTie = true
		}
	}
}

func (m *Module) reduceContinueTrick(st *State, a engine.ContinueAfterTrickResult) (engine.State, error) {
	if st.Phase != PhaseTrickResult {
		return nil, errkind.New(errkind.BadRequest, "no trick result to continue from")
	}
	if _, ok := st.Players[a.UserID]; !ok {
		return nil, errkind.New(errkind.Forbidden, "only participants can continue the game")
	}

	next := st.Clone().(*State)
	winnerID := next.CurrentTrick.WinnerID
	next.CompletedTricks = append(next.CompletedTricks, *next.CurrentTrick)
	next.CurrentTrick = nil
	for seat, id := range next.PlayOrder {
		if id == winnerID {
			next.CurrentTurnIndex = seat
			break
		}
	}
	next.Phase = PhasePlaying
	next.TurnStartedAt = time.Now()
	return next, nil
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
	next.DealerIndex = (next.DealerIndex + 1) % 4
	next.CurrentTurnIndex = next.DealerIndex
	next.Bids = make(map[string]*Bid)
	next.SpadesBroken = false
	next.CurrentTrick = nil
	next.CompletedTricks = nil
	next.LastTrickWinnerID = ""
	next.LastTrickWinningCard = nil
	next.RoundTrickCounts = map[string]int{"team1": 0, "team2": 0}
	next.RoundTeamScores = nil
	next.RoundScoreBreakdown = nil

	// Blind eligibility: a team at least 100 behind the leader may bid blind
	// next round.
	maxScore := 0
	first := true
	for _, team := range next.Teams {
		if first || team.Score > maxScore {
			maxScore = team.Score
			first = false
		}
	}
	for teamID, team := range next.Teams {
		next.TeamEligibleForBlind[teamID] = maxScore-team.Score >= blindDeficit
	}

	dealHands(next, roundRNG(next))
	next.Phase = PhaseBidding
	next.TurnStartedAt = time.Now()
	return next, nil
}

// CheckMinimumPlayers implements engine.Module: all four seats must be
// occupied by connected players.
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

// HandleLeave implements engine.Module: the seat stays in the play order but
// its owner is gone for good, pending a slot claim.
func (*Module) HandleLeave(raw engine.State, userID string) engine.State {
	next := raw.Clone().(*State)
	if p, ok := next.Players[userID]; ok {
		p.Connected = false
		p.Left = true
	}
	return next
}

// TransferSlot implements engine.Module: rewrites fromID's seat to toID,
// preserving hand, bid, and team membership.
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
	for _, team := range next.Teams {
		for i, id := range team.Players {
			if id == fromID {
				team.Players[i] = toID
			}
		}
	}
	if h, ok := next.Hands[fromID]; ok {
		next.Hands[toID] = h
		delete(next.Hands, fromID)
	}
	if b, ok := next.Bids[fromID]; ok {
		next.Bids[toID] = b
		delete(next.Bids, fromID)
	}
	if next.CurrentTrick != nil {
		renameTrick(next.CurrentTrick, fromID, toID)
	}
	for i := range next.CompletedTricks {
		renameTrick(&next.CompletedTricks[i], fromID, toID)
	}
	if next.LastTrickWinnerID == fromID {
		next.LastTrickWinnerID = toID
	}
	return next, nil
}

func renameTrick(t *Trick, fromID, toID string) {
	for i := range t.Plays {
		if t.Plays[i].UserID == fromID {
			t.Plays[i].UserID = toID
		}
	}
	if t.WinnerID == fromID {
		t.WinnerID = toID
	}
}

// CurrentTurn implements engine.Module. Only the bidding and playing phases
// are turn-timed; the result and summary phases wait for an explicit
// continue.
func (*Module) CurrentTurn(raw engine.State) (string, int, bool) {
	st := raw.(*State)
	if st.Phase != PhaseBidding && st.Phase != PhasePlaying {
		return "", 0, false
	}
	limit, ok := st.Settings.NullableInt("turnTimeLimit")
	if !ok {
		return "", 0, false
	}
	return st.CurrentUserID(), limit, true
}

// AutoAction implements engine.Module: the lowest legal bid while bidding,
// the first legal card while playing.
func (*Module) AutoAction(raw engine.State) engine.Action {
	st := raw.(*State)
	userID := st.CurrentUserID()
	if userID == "" {
		return nil
	}

	switch st.Phase {
	case PhaseBidding:
		if st.Settings.Bool("allowNil", true) {
			return PlaceBid{UserID: userID, Amount: 0, BidType: BidNil}
		}
		return PlaceBid{UserID: userID, Amount: 1, BidType: BidNormal}
	case PhasePlaying:
		hand := st.Hands[userID]
		for _, c := range hand {
			if canPlayCard(c, hand, st.CurrentTrick, st.SpadesBroken) {
				return PlayCard{UserID: userID, Card: c}
			}
		}
	}
	return nil
}
