package cards

import (
	"encoding/json"
	"fmt"
)

// Suit represents a card suit.
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Clubs    Suit = "♣"
	Diamonds Suit = "♦"
)

// Rank represents a card rank. Jokers are modelled as ranks so a joker-enabled
// deck stays a flat []Card.
type Rank string

const (
	Two         Rank = "2"
	Three       Rank = "3"
	Four        Rank = "4"
	Five        Rank = "5"
	Six         Rank = "6"
	Seven       Rank = "7"
	Eight       Rank = "8"
	Nine        Rank = "9"
	Ten         Rank = "10"
	Jack        Rank = "J"
	Queen       Rank = "Q"
	King        Rank = "K"
	Ace         Rank = "A"
	LittleJoker Rank = "LJ"
	BigJoker    Rank = "BJ"
)

// Card represents a playing card. Jokers carry Suit=Spades so that they count
// as trump everywhere trump logic looks at the suit.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// String returns a short human-readable representation, e.g. "Q♠".
func (c Card) String() string {
	return string(c.Rank) + string(c.Suit)
}

// IsJoker reports whether the card is the little or big joker.
func (c Card) IsJoker() bool {
	return c.Rank == LittleJoker || c.Rank == BigJoker
}

// cardJSON is the wire shape accepted when decoding cards from clients.
type cardJSON struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// UnmarshalJSON validates suit and rank instead of trusting client input.
func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}

	switch cj.Suit {
	case "♠", "s", "S", "spades", "Spades":
		c.Suit = Spades
	case "♥", "h", "H", "hearts", "Hearts":
		c.Suit = Hearts
	case "♣", "c", "C", "clubs", "Clubs":
		c.Suit = Clubs
	case "♦", "d", "D", "diamonds", "Diamonds":
		c.Suit = Diamonds
	default:
		return fmt.Errorf("invalid suit: %s", cj.Suit)
	}

	switch cj.Rank {
	case "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A", "LJ", "BJ":
		c.Rank = Rank(cj.Rank)
	case "T", "t":
		c.Rank = Ten
	default:
		return fmt.Errorf("invalid rank: %s", cj.Rank)
	}

	// Jokers are spades by construction; normalize whatever the client sent.
	if c.IsJoker() {
		c.Suit = Spades
	}
	return nil
}

// RankValue returns the comparable strength of a rank within one suit.
// Jokers rank above everything (big over little). When deuceOfSpadesHigh is
// set the caller is expected to pass spadesDeuceHigh=true only for the 2♠,
// which then slots above the ace and below the jokers.
func RankValue(r Rank, spadesDeuceHigh bool) int {
	switch r {
	case BigJoker:
		return 18
	case LittleJoker:
		return 17
	}
	if r == Two && spadesDeuceHigh {
		return 15
	}
	switch r {
	case Ace:
		return 14
	case King:
		return 13
	case Queen:
		return 12
	case Jack:
		return 11
	case Ten:
		return 10
	case Nine:
		return 9
	case Eight:
		return 8
	case Seven:
		return 7
	case Six:
		return 6
	case Five:
		return 5
	case Four:
		return 4
	case Three:
		return 3
	case Two:
		return 2
	}
	return 0
}

// suitOrder ranks suits for hand sorting: spades first, then hearts, clubs,
// diamonds.
func suitOrder(s Suit) int {
	switch s {
	case Spades:
		return 0
	case Hearts:
		return 1
	case Clubs:
		return 2
	case Diamonds:
		return 3
	}
	return 4
}
