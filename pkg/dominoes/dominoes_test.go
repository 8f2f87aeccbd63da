package dominoes

import (
	"testing"

	"github.com/parlorgames/parlord/pkg/engine"
)

func testRoom(seed int64, settings map[string]interface{}) engine.RoomInfo {
	mod := New()
	return engine.RoomInfo{
		RoomID: "room1",
		Users: []engine.PlayerInfo{
			{ID: "U1", Name: "Alice"},
			{ID: "U2", Name: "Bob"},
			{ID: "U3", Name: "Carol"},
			{ID: "U4", Name: "Dave"},
		},
		LeaderID: "U1",
		Settings: engine.Validate(mod.Meta().Settings, settings),
		Seed:     seed,
	}
}

func mustInit(t *testing.T, seed int64, settings map[string]interface{}) *State {
	t.Helper()
	st, err := New().Init(testRoom(seed, settings))
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return st.(*State)
}

// checkTileConservation verifies hands plus board always hold all 28 tiles
// exactly once.
func checkTileConservation(t *testing.T, st *State) {
	t.Helper()
	seen := make(map[string]int, 28)
	for _, h := range st.Hands {
		for _, tile := range h {
			seen[tile.ID]++
		}
	}
	for _, tile := range st.Board {
		seen[tile.ID]++
	}
	if len(seen) != 28 {
		t.Fatalf("tile multiset has %d distinct tiles, want 28", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("tile %s appears %d times", id, n)
		}
	}
}

func TestInitDealsSevenEach(t *testing.T) {
	st := mustInit(t, 42, nil)
	if st.Phase != PhasePlaying {
		t.Fatalf("phase = %s, want playing", st.Phase)
	}
	for id, h := range st.Hands {
		if len(h) != 7 {
			t.Fatalf("hand of %s has %d tiles, want 7", id, len(h))
		}
	}
	checkTileConservation(t, st)

	// Starter holds the highest double on the table.
	starter := st.PlayOrder[st.StarterIndex]
	best := -1
	for _, h := range st.Hands {
		for _, tile := range h {
			if tile.IsDouble() && tile.Left > best {
				best = tile.Left
			}
		}
	}
	if best >= 0 {
		holds := false
		for _, tile := range st.Hands[starter] {
			if tile.IsDouble() && tile.Left == best {
				holds = true
			}
		}
		if !holds {
			t.Fatalf("starter %s does not hold the %d-%d double", starter, best, best)
		}
	}
	if st.CurrentTurnIndex != st.StarterIndex {
		t.Fatal("first turn is not the starter's")
	}
}

func TestBoardPlacementNormalization(t *testing.T) {
	var b Board

	b, ok := b.Place(Tile{ID: "3-5", Left: 3, Right: 5}, SideRight)
	if !ok {
		t.Fatal("opening placement refused")
	}
	l, _ := b.LeftEnd()
	r, _ := b.RightEnd()
	if l != 3 || r != 5 {
		t.Fatalf("ends = (%d,%d), want (3,5)", l, r)
	}

	// 5-2 on the right: the 5 touches the chain, 2 becomes the new end.
	b, ok = b.Place(Tile{ID: "2-5", Left: 2, Right: 5}, SideRight)
	if !ok {
		t.Fatal("right placement refused")
	}
	if r, _ = b.RightEnd(); r != 2 {
		t.Fatalf("right end = %d, want 2", r)
	}
	if b[len(b)-1].Left != 5 {
		t.Fatal("matched pip does not face inward on the right")
	}

	// 3-6 on the left: the 3 touches the chain, 6 becomes the new end.
	b, ok = b.Place(Tile{ID: "3-6", Left: 3, Right: 6}, SideLeft)
	if !ok {
		t.Fatal("left placement refused")
	}
	if l, _ = b.LeftEnd(); l != 6 {
		t.Fatalf("left end = %d, want 6", l)
	}
	if b[0].Right != 3 {
		t.Fatal("matched pip does not face inward on the left")
	}

	// A tile matching neither end is refused.
	if _, ok = b.Place(Tile{ID: "0-1", Left: 0, Right: 1}, SideRight); ok {
		t.Fatal("non-matching tile accepted")
	}
}

func TestPlaceTileValidation(t *testing.T) {
	mod := New()
	st := mustInit(t, 42, nil)
	user := st.CurrentUserID()

	// Not your turn.
	other := st.PlayOrder[(st.CurrentTurnIndex+1)%4]
	if _, err := mod.Reduce(st, PlaceTile{UserID: other, TileID: st.Hands[other][0].ID, Side: SideRight}); err == nil {
		t.Fatal("out-of-turn placement accepted")
	}

	// Tile not in hand.
	if _, err := mod.Reduce(st, PlaceTile{UserID: user, TileID: "no-such", Side: SideRight}); err == nil {
		t.Fatal("placement of a foreign tile accepted")
	}

	// Opening placement always legal.
	next, err := mod.Reduce(st, PlaceTile{UserID: user, TileID: st.Hands[user][0].ID, Side: SideRight})
	if err != nil {
		t.Fatalf("opening placement rejected: %v", err)
	}
	ns := next.(*State)
	if len(ns.Board) != 1 {
		t.Fatalf("board has %d tiles after opening, want 1", len(ns.Board))
	}
	if len(ns.Hands[user]) != 6 {
		t.Fatalf("hand has %d tiles after placing, want 6", len(ns.Hands[user]))
	}
	if ns.CurrentUserID() == user {
		t.Fatal("turn did not advance")
	}
	checkTileConservation(t, ns)
}

func TestPassRequiresNoLegalMove(t *testing.T) {
	mod := New()
	st := mustInit(t, 42, nil)
	user := st.CurrentUserID()

	// On an empty board every tile is playable, so a pass is illegal.
	if _, err := mod.Reduce(st, Pass{UserID: user}); err == nil {
		t.Fatal("pass accepted while tiles are playable")
	}

	// Strip the hand down to a tile that fits neither end.
	st.Board = Board{{ID: "5-5", Left: 5, Right: 5}}
	st.Hands[user] = []Tile{{ID: "0-1", Left: 0, Right: 1}}
	next, err := mod.Reduce(st, Pass{UserID: user})
	if err != nil {
		t.Fatalf("blocked pass rejected: %v", err)
	}
	if next.(*State).ConsecutivePasses != 1 {
		t.Fatal("pass not counted")
	}
}

func TestGoOutScoring(t *testing.T) {
	mod := New()
	st := mustInit(t, 42, nil)
	// Rig the table: current player holds one playable tile, opponents hold
	// pip counts 7, 10, and 12.
	user := st.CurrentUserID()
	seat := st.CurrentTurnIndex
	st.Board = Board{{ID: "2-4", Left: 2, Right: 4}}
	st.Hands[user] = []Tile{{ID: "4-6", Left: 4, Right: 6}}
	st.Hands[st.PlayOrder[(seat+1)%4]] = []Tile{{ID: "3-4", Left: 3, Right: 4}}
	st.Hands[st.PlayOrder[(seat+2)%4]] = []Tile{{ID: "4-6b", Left: 4, Right: 6}}
	st.Hands[st.PlayOrder[(seat+3)%4]] = []Tile{{ID: "6-6", Left: 6, Right: 6}}

	next, err := mod.Reduce(st, PlaceTile{UserID: user, TileID: "4-6", Side: SideRight})
	if err != nil {
		t.Fatalf("go-out placement rejected: %v", err)
	}
	ns := next.(*State)
	if ns.RoundWinner != user {
		t.Fatalf("round winner = %s, want %s", ns.RoundWinner, user)
	}
	if ns.PlayerScores[user] != 29 {
		t.Fatalf("winner score = %d, want 29", ns.PlayerScores[user])
	}
	if ns.Phase != PhaseRoundSummary {
		t.Fatalf("phase = %s, want round-summary", ns.Phase)
	}
	if ns.RoundResults[user].Earned != 29 {
		t.Fatalf("earned = %d, want 29", ns.RoundResults[user].Earned)
	}
}

func TestBlockedTieScoresNothing(t *testing.T) {
	mod := New()
	st := mustInit(t, 42, nil)
	seat := st.CurrentTurnIndex
	// Pip counts 6, 6, 10, 14 with no playable tile anywhere.
	st.Board = Board{{ID: "5-5", Left: 5, Right: 5}}
	st.Hands[st.PlayOrder[seat]] = []Tile{{ID: "2-4", Left: 2, Right: 4}}
	st.Hands[st.PlayOrder[(seat+1)%4]] = []Tile{{ID: "0-6", Left: 0, Right: 6}}
	st.Hands[st.PlayOrder[(seat+2)%4]] = []Tile{{ID: "4-6", Left: 4, Right: 6}}
	st.Hands[st.PlayOrder[(seat+3)%4]] = []Tile{{ID: "6-8", Left: 6, Right: 8}}
	st.ConsecutivePasses = 3

	next, err := mod.Reduce(st, Pass{UserID: st.CurrentUserID()})
	if err != nil {
		t.Fatalf("fourth pass rejected: %v", err)
	}
	ns := next.(*State)
	if !ns.RoundBlocked || !ns.IsTie {
		t.Fatalf("blocked=%v tie=%v, want both true", ns.RoundBlocked, ns.IsTie)
	}
	if ns.RoundWinner != "" {
		t.Fatalf("tie has winner %s", ns.RoundWinner)
	}
	for id, score := range ns.PlayerScores {
		if score != 0 {
			t.Fatalf("score of %s changed to %d on a tie", id, score)
		}
	}
}

func TestBlockedSingleLowestWins(t *testing.T) {
	mod := New()
	st := mustInit(t, 42, nil)
	seat := st.CurrentTurnIndex
	st.Board = Board{{ID: "5-5", Left: 5, Right: 5}}
	// Pip counts 6, 3, 10, 14: the lowest hand wins the sum of the
	// opponents' excess, 3+7+11 = 21.
	st.Hands[st.PlayOrder[seat]] = []Tile{{ID: "2-4", Left: 2, Right: 4}}
	st.Hands[st.PlayOrder[(seat+1)%4]] = []Tile{{ID: "0-3", Left: 0, Right: 3}}
	st.Hands[st.PlayOrder[(seat+2)%4]] = []Tile{{ID: "4-6", Left: 4, Right: 6}}
	st.Hands[st.PlayOrder[(seat+3)%4]] = []Tile{{ID: "6-8", Left: 6, Right: 8}}
	st.ConsecutivePasses = 3

	next, err := mod.Reduce(st, Pass{UserID: st.CurrentUserID()})
	if err != nil {
		t.Fatalf("fourth pass rejected: %v", err)
	}
	ns := next.(*State)
	lowest := st.PlayOrder[(seat+1)%4]
	if ns.RoundWinner != lowest {
		t.Fatalf("round winner = %s, want %s", ns.RoundWinner, lowest)
	}
	if ns.PlayerScores[lowest] != 21 {
		t.Fatalf("winner score = %d, want 21", ns.PlayerScores[lowest])
	}
}

func TestContinueAfterRoundSummaryRedeals(t *testing.T) {
	mod := New()
	st := mustInit(t, 7, nil)
	st.Phase = PhaseRoundSummary
	st.RoundWinner = "U2"
	st.RoundResults = map[string]*PlayerRoundResult{"U2": {Earned: 10}}

	next, err := mod.Reduce(st, engine.ContinueAfterRoundSummary{UserID: "U1"})
	if err != nil {
		t.Fatalf("continue rejected: %v", err)
	}
	ns := next.(*State)
	if ns.Phase != PhasePlaying {
		t.Fatalf("phase = %s, want playing", ns.Phase)
	}
	if ns.Round != 2 {
		t.Fatalf("round = %d, want 2", ns.Round)
	}
	if len(ns.Board) != 0 || ns.ConsecutivePasses != 0 {
		t.Fatal("board state not reset")
	}
	if ns.RoundWinner != "" || ns.RoundResults != nil {
		t.Fatal("round summary fields not cleared")
	}
	checkTileConservation(t, ns)
}

func TestWinTarget(t *testing.T) {
	mod := New()
	st := mustInit(t, 42, map[string]interface{}{"winTarget": float64(50)})
	user := st.CurrentUserID()
	seat := st.CurrentTurnIndex
	st.PlayerScores[user] = 30
	st.Board = Board{{ID: "2-4", Left: 2, Right: 4}}
	st.Hands[user] = []Tile{{ID: "4-6", Left: 4, Right: 6}}
	st.Hands[st.PlayOrder[(seat+1)%4]] = []Tile{{ID: "6-6", Left: 6, Right: 6}}
	st.Hands[st.PlayOrder[(seat+2)%4]] = []Tile{{ID: "5-6", Left: 5, Right: 6}}
	st.Hands[st.PlayOrder[(seat+3)%4]] = []Tile{{ID: "1-2", Left: 1, Right: 2}}

	next, err := mod.Reduce(st, PlaceTile{UserID: user, TileID: "4-6", Side: SideRight})
	if err != nil {
		t.Fatalf("placement rejected: %v", err)
	}
	ns := next.(*State)
	if ns.Phase != PhaseFinished {
		t.Fatalf("phase = %s, want finished", ns.Phase)
	}
	if ns.WinnerID != user {
		t.Fatalf("winner = %s, want %s", ns.WinnerID, user)
	}
}

// TestFullRoundConservation drives a whole round through auto-actions,
// checking the tile multiset after every transition.
func TestFullRoundConservation(t *testing.T) {
	mod := New()
	st := mustInit(t, 99, nil)

	var cur engine.State = st
	for i := 0; i < 200; i++ {
		s := cur.(*State)
		checkTileConservation(t, s)
		if s.Phase != PhasePlaying {
			if s.RoundResults == nil {
				t.Fatal("round ended without results")
			}
			return
		}
		act := mod.AutoAction(s)
		if act == nil {
			t.Fatal("no auto action while playing")
		}
		next, err := mod.Reduce(s, act)
		if err != nil {
			t.Fatalf("auto action rejected: %v", err)
		}
		cur = next
	}
	t.Fatal("round did not finish within the step bound")
}

func TestProjectionsHideHands(t *testing.T) {
	mod := New()
	st := mustInit(t, 3, nil)

	pub := mod.PublicState(st).(PublicView)
	total := 0
	for _, n := range pub.HandsCounts {
		total += n
	}
	if total != 28 {
		t.Fatalf("public tile counts sum to %d, want 28", total)
	}

	pv := mod.PlayerState(st, "U3").(PlayerView)
	if len(pv.Hand) != 7 {
		t.Fatalf("player hand has %d tiles, want 7", len(pv.Hand))
	}
	if len(pv.LocalOrdering) != 4 || pv.LocalOrdering[0] != "U3" {
		t.Fatalf("localOrdering = %v, want rotation starting at U3", pv.LocalOrdering)
	}
}

func TestDealDeterminism(t *testing.T) {
	a := mustInit(t, 13, nil)
	b := mustInit(t, 13, nil)
	for id := range a.Hands {
		for i, tile := range a.Hands[id] {
			if b.Hands[id][i] != tile {
				t.Fatalf("deal not deterministic for %s at %d", id, i)
			}
		}
	}
}
