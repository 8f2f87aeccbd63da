package dominoes

import (
	"fmt"
	"math/rand"

	"github.com/parlorgames/parlord/pkg/cards"
)

// Tile is one domino. ID is the canonical low-high pip pair and is stable
// across orientation flips; Left and Right are the pips as laid on the board.
type Tile struct {
	ID    string `json:"id"`
	Left  int    `json:"left"`
	Right int    `json:"right"`
}

// IsDouble reports whether both pips match.
func (t Tile) IsDouble() bool { return t.Left == t.Right }

// Pips returns the tile's pip total.
func (t Tile) Pips() int { return t.Left + t.Right }

// Has reports whether either pip equals v.
func (t Tile) Has(v int) bool { return t.Left == v || t.Right == v }

// NewSet builds the 28-tile double-six set.
func NewSet() []Tile {
	tiles := make([]Tile, 0, 28)
	for lo := 0; lo <= 6; lo++ {
		for hi := lo; hi <= 6; hi++ {
			tiles = append(tiles, Tile{ID: fmt.Sprintf("%d-%d", lo, hi), Left: lo, Right: hi})
		}
	}
	return tiles
}

// Deal shuffles a fresh set and deals seven tiles to each of four hands.
func Deal(rng *rand.Rand) [][]Tile {
	tiles := NewSet()
	cards.Shuffle(tiles, rng)
	hands := make([][]Tile, 4)
	for i := range hands {
		hands[i] = append([]Tile(nil), tiles[i*7:(i+1)*7]...)
	}
	return hands
}

// Board is the played chain. The stored orientation is normalized: the
// outward pip of the first tile is its Left, the outward pip of the last tile
// is its Right.
type Board []Tile

// LeftEnd returns the open pip on the left end. ok is false on an empty board.
func (b Board) LeftEnd() (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	return b[0].Left, true
}

// RightEnd returns the open pip on the right end.
func (b Board) RightEnd() (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	return b[len(b)-1].Right, true
}

// CanPlace reports whether t fits on the given side.
func (b Board) CanPlace(t Tile, side Side) bool {
	if len(b) == 0 {
		return true
	}
	switch side {
	case SideLeft:
		end, _ := b.LeftEnd()
		return t.Has(end)
	case SideRight:
		end, _ := b.RightEnd()
		return t.Has(end)
	}
	return false
}

// CanPlaceAnywhere reports whether t fits on either end.
func (b Board) CanPlaceAnywhere(t Tile) bool {
	return b.CanPlace(t, SideLeft) || b.CanPlace(t, SideRight)
}

// Place appends t on the given side, orienting it so the matched pip faces
// inward. Placing an illegal tile returns the board unchanged and false.
func (b Board) Place(t Tile, side Side) (Board, bool) {
	if len(b) == 0 {
		return Board{t}, true
	}
	if !b.CanPlace(t, side) {
		return b, false
	}

	switch side {
	case SideLeft:
		end, _ := b.LeftEnd()
		// The matched pip becomes the tile's Right, touching the chain.
		if t.Right != end {
			t.Left, t.Right = t.Right, t.Left
		}
		out := make(Board, 0, len(b)+1)
		out = append(out, t)
		return append(out, b...), true
	default:
		end, _ := b.RightEnd()
		if t.Left != end {
			t.Left, t.Right = t.Right, t.Left
		}
		return append(append(Board(nil), b...), t), true
	}
}

// hasLegalMove reports whether any tile in hand fits on the board.
func hasLegalMove(hand []Tile, b Board) bool {
	for _, t := range hand {
		if b.CanPlaceAnywhere(t) {
			return true
		}
	}
	return false
}

// pipCount sums a hand's remaining pips.
func pipCount(hand []Tile) int {
	total := 0
	for _, t := range hand {
		total += t.Pips()
	}
	return total
}

// highestDoubleHolder returns the seat of the player holding the highest
// double, or -1 when no hand holds one.
func highestDoubleHolder(order []string, hands map[string][]Tile) int {
	best, seat := -1, -1
	for i, id := range order {
		for _, t := range hands[id] {
			if t.IsDouble() && t.Left > best {
				best = t.Left
				seat = i
			}
		}
	}
	return seat
}
