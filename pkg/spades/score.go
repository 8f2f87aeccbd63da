package spades

// TeamRoundScore is the per-team breakdown of one round's scoring.
type TeamRoundScore struct {
	TeamBid    int  `json:"teamBid"`
	TricksWon  int  `json:"tricksWon"`
	BasePoints int  `json:"basePoints"`
	Bags       int  `json:"bags"`
	BagPoints  int  `json:"bagPoints"`
	BagPenalty int  `json:"bagPenalty"`
	NilBonus   int  `json:"nilBonus"`
	NilPenalty int  `json:"nilPenalty"`
	NilSuccess bool `json:"nilSuccess"`

	BlindBonus      int `json:"blindBonus"`
	BlindPenalty    int `json:"blindPenalty"`
	BlindNilBonus   int `json:"blindNilBonus"`
	BlindNilPenalty int `json:"blindNilPenalty"`

	RoundScore         int `json:"roundScore"`
	NewScore           int `json:"newScore"`
	NewAccumulatedBags int `json:"newAccumulatedBags"`
}

// scoreRound computes the round breakdown for both teams from the completed
// tricks and bids. It reads st but does not mutate it.
func scoreRound(st *State) map[string]*TeamRoundScore {
	playerTricks := make(map[string]int, 4)
	for _, t := range st.CompletedTricks {
		playerTricks[t.WinnerID]++
	}

	out := make(map[string]*TeamRoundScore, len(st.Teams))
	for teamID, team := range st.Teams {
		b := &TeamRoundScore{NilSuccess: true}
		hasBlind := false

		for _, userID := range team.Players {
			bid := st.Bids[userID]
			if bid == nil {
				continue
			}
			b.TricksWon += playerTricks[userID]

			switch bid.Type {
			case BidNil:
				if playerTricks[userID] == 0 {
					b.NilBonus += 100
				} else {
					b.NilPenalty += 100
					b.NilSuccess = false
				}
			case BidBlindNil:
				if playerTricks[userID] == 0 {
					b.BlindNilBonus += 200
				} else {
					b.BlindNilPenalty += 200
					b.NilSuccess = false
				}
			case BidBlind:
				hasBlind = true
				b.TeamBid += bid.Amount
			default:
				b.TeamBid += bid.Amount
			}
		}

		if b.TeamBid > 0 {
			if b.TricksWon >= b.TeamBid {
				b.BasePoints = b.TeamBid * 10
				if hasBlind {
					// Made blind bids pay double.
					b.BlindBonus = b.TeamBid * 10
				}
				b.Bags = b.TricksWon - b.TeamBid
				b.BagPoints = b.Bags
			} else {
				b.BasePoints = -b.TeamBid * 10
				if hasBlind {
					b.BlindPenalty = b.TeamBid * 10
				}
			}
		}

		cumulativeBags := team.AccumulatedBags + b.Bags
		if cumulativeBags >= 10 {
			// The setting is stored negative; it applies as a positive
			// deduction. One penalty per round, keeping the %10 remainder.
			penalty := st.Settings.Int("bagsPenalty", -100)
			if penalty < 0 {
				penalty = -penalty
			}
			b.BagPenalty = penalty
			cumulativeBags %= 10
		}
		b.NewAccumulatedBags = cumulativeBags

		b.RoundScore = b.BasePoints + b.BagPoints +
			b.NilBonus - b.NilPenalty +
			b.BlindBonus - b.BlindPenalty +
			b.BlindNilBonus - b.BlindNilPenalty -
			b.BagPenalty
		b.NewScore = team.Score + b.RoundScore

		out[teamID] = b
	}
	return out
}
