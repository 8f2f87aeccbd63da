package cards

import (
	"math/rand"
	"sort"
)

// Shuffle randomizes xs in place with a Fisher–Yates permutation driven by the
// supplied random source. A fixed-seed source makes deals reproducible, which
// the tests rely on.
func Shuffle[T any](xs []T, rng *rand.Rand) {
	rng.Shuffle(len(xs), func(i, j int) {
		xs[i], xs[j] = xs[j], xs[i]
	})
}

// NewSpadesDeck builds an unshuffled spades deck. The plain deck is the
// standard 52 cards; with jokers enabled the 2♣ and 2♦ are removed and the
// little and big jokers appended, keeping the deck at 52 so every player still
// receives 13 cards.
func NewSpadesDeck(jokersEnabled bool) []Card {
	suits := []Suit{Spades, Hearts, Clubs, Diamonds}
	ranks := []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

	deck := make([]Card, 0, 52)
	for _, suit := range suits {
		for _, rank := range ranks {
			if jokersEnabled && rank == Two && (suit == Clubs || suit == Diamonds) {
				continue
			}
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	if jokersEnabled {
		deck = append(deck, Card{Rank: LittleJoker, Suit: Spades}, Card{Rank: BigJoker, Suit: Spades})
	}
	return deck
}

// DealRoundRobin deals the whole deck one card at a time into numHands hands,
// starting with hand 0.
func DealRoundRobin(deck []Card, numHands int) [][]Card {
	hands := make([][]Card, numHands)
	for i := range hands {
		hands[i] = make([]Card, 0, (len(deck)+numHands-1)/numHands)
	}
	for i, c := range deck {
		hands[i%numHands] = append(hands[i%numHands], c)
	}
	return hands
}

// SortHand orders a hand for display: suits ♠ ♥ ♣ ♦, high card first within a
// suit. deuceHigh applies the 2♠-above-ace variant ordering.
func SortHand(hand []Card, deuceHigh bool) {
	sort.SliceStable(hand, func(i, j int) bool {
		a, b := hand[i], hand[j]
		if a.Suit != b.Suit {
			return suitOrder(a.Suit) < suitOrder(b.Suit)
		}
		return cardStrength(a, deuceHigh) > cardStrength(b, deuceHigh)
	})
}

// cardStrength is RankValue with the deuce-of-spades variant applied only to
// the 2♠.
func cardStrength(c Card, deuceHigh bool) int {
	return RankValue(c.Rank, deuceHigh && c.Suit == Spades && c.Rank == Two)
}

// Strength exposes cardStrength for rule packages that compare cards under
// the same variant settings as the sort order.
func Strength(c Card, deuceHigh bool) int {
	return cardStrength(c, deuceHigh)
}

// Remove deletes the first occurrence of target from hand and reports whether
// it was present.
func Remove(hand []Card, target Card) ([]Card, bool) {
	for i, c := range hand {
		if c == target {
			out := make([]Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			out = append(out, hand[i+1:]...)
			return out, true
		}
	}
	return hand, false
}

// Contains reports whether hand holds target.
func Contains(hand []Card, target Card) bool {
	for _, c := range hand {
		if c == target {
			return true
		}
	}
	return false
}
