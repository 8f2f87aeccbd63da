package spades

import (
	"github.com/parlorgames/parlord/pkg/cards"
	"github.com/parlorgames/parlord/pkg/engine"
)

// ruleSettings snapshots the settings a comparison needs.
type ruleSettings struct {
	jokersEnabled bool
	deuceHigh     bool
}

func rulesFrom(s engine.Settings) ruleSettings {
	return ruleSettings{
		jokersEnabled: s.Bool("jokersEnabled", false),
		deuceHigh:     s.Bool("deuceOfSpadesHigh", false),
	}
}

// cardBeats reports whether a beats b in a trick led with led. Spades are
// always trump; jokers sit above every spade with big over little. Among
// non-spade suits only the led suit competes, so an off-suit discard never
// beats anything.
func cardBeats(a, b cards.Card, led cards.Suit, rules ruleSettings) bool {
	if rules.jokersEnabled {
		switch {
		case a.IsJoker() && b.IsJoker():
			return cards.RankValue(a.Rank, false) > cards.RankValue(b.Rank, false)
		case a.IsJoker():
			return true
		case b.IsJoker():
			return false
		}
	}

	if a.Suit == b.Suit {
		return strength(a, rules) > strength(b, rules)
	}
	if a.Suit == cards.Spades {
		return true
	}
	if b.Suit == cards.Spades {
		return false
	}
	// Neither is trump: only the led suit is comparable.
	return a.Suit == led && b.Suit != led
}

func strength(c cards.Card, rules ruleSettings) int {
	return cards.Strength(c, rules.deuceHigh)
}

// canPlayCard reports whether card is a legal play for the holder of hand
// given the trick in progress. An empty or nil trick means the player is
// leading.
func canPlayCard(card cards.Card, hand []cards.Card, trick *Trick, spadesBroken bool) bool {
	if !cards.Contains(hand, card) {
		return false
	}

	leading := trick == nil || len(trick.Plays) == 0
	if leading {
		if card.Suit == cards.Spades && !spadesBroken && !allSpades(hand) {
			return false
		}
		return true
	}

	led := trick.LeadSuit
	if card.Suit == led {
		return true
	}
	return !holdsSuit(hand, led)
}

func allSpades(hand []cards.Card) bool {
	for _, c := range hand {
		if c.Suit != cards.Spades {
			return false
		}
	}
	return true
}

func holdsSuit(hand []cards.Card, suit cards.Suit) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

// resolveTrickWinner returns the play that wins the trick.
func resolveTrickWinner(t *Trick, rules ruleSettings) TrickPlay {
	winner := t.Plays[0]
	for _, p := range t.Plays[1:] {
		if cardBeats(p.Card, winner.Card, t.LeadSuit, rules) {
			winner = p
		}
	}
	return winner
}
