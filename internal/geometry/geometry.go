// Package geometry decides which displacements each nature can perform.
// Every function here is pure.
package geometry

import "schroedinger/internal/core"

// Occupancy describes the destination square relative to the mover.
type Occupancy int

const (
	Empty Occupancy = iota
	Friend
	Enemy
)

// Grid reports square occupancy for trajectory checks.
type Grid interface {
	Occupied(sq core.Square) bool
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func delta(from, to core.Square) (h, v int) {
	return to.File - from.File, to.Rank - from.Rank
}

// MoveExists reports whether the displacement is a rook, bishop or knight
// shape. A zero displacement is not a move.
func MoveExists(from, to core.Square) bool {
	h, v := delta(from, to)
	ah, av := abs(h), abs(v)
	hi, lo := max(ah, av), min(ah, av)
	d := abs(ah - av)
	switch {
	case lo > 0 && d > 1:
		return false
	case lo > 0 && d == 1:
		return hi == 2 && lo == 1
	case hi == 0:
		return false
	}
	return true
}

// IsKnightJump reports a (1,2) or (2,1) displacement.
func IsKnightJump(from, to core.Square) bool {
	h, v := delta(from, to)
	ah, av := abs(h), abs(v)
	return (ah == 2 && av == 1) || (ah == 1 && av == 2)
}

// PawnDirection is +1 for white and -1 for black.
func PawnDirection(c core.Color) int {
	if c == core.ColorWhite {
		return 1
	}
	return -1
}

// PawnHomeRank is the rank pawns start on.
func PawnHomeRank(c core.Color) int {
	if c == core.ColorWhite {
		return 1
	}
	return 6
}

// LastRank is the promotion rank for the colour.
func LastRank(c core.Color) int {
	if c == core.ColorWhite {
		return 7
	}
	return 0
}

// PawnCouldReach is a quiet pawn step: one forward, or two from the home rank.
func PawnCouldReach(from, to core.Square, c core.Color) bool {
	h, v := delta(from, to)
	dir := PawnDirection(c)
	if h != 0 {
		return false
	}
	return v == dir || (v == 2*dir && from.Rank == PawnHomeRank(c))
}

// PawnCouldTake is a diagonal forward step.
func PawnCouldTake(from, to core.Square, c core.Color) bool {
	h, v := delta(from, to)
	return abs(h) == 1 && v == PawnDirection(c)
}

// PossibleMove decides whether a piece of nature n and colour c could move
// from -> to, ignoring blocking. Only the pawn depends on the occupant.
func PossibleMove(from, to core.Square, n core.Nature, c core.Color, occ Occupancy) bool {
	h, v := delta(from, to)
	ah, av := abs(h), abs(v)
	switch n {
	case core.King:
		return ah <= 1 && av <= 1 && (ah|av) != 0
	case core.Queen:
		return (ah == 0 && av >= 1) || (av == 0 && ah >= 1) || (ah == av && ah >= 1)
	case core.Rook:
		return (ah == 0 && av >= 1) || (av == 0 && ah >= 1)
	case core.Bishop:
		return ah == av && ah >= 1
	case core.Knight:
		return (ah == 2 && av == 1) || (ah == 1 && av == 2)
	case core.Pawn:
		switch occ {
		case Empty:
			return PawnCouldReach(from, to, c)
		case Enemy:
			return PawnCouldTake(from, to, c)
		default:
			return false
		}
	}
	return false
}

// PossibleNatures filters the set down to natures that could perform the move.
func PossibleNatures(from, to core.Square, set core.NatureSet, c core.Color, occ Occupancy) core.NatureSet {
	var out core.NatureSet
	for _, n := range set.Natures() {
		if PossibleMove(from, to, n, c, occ) {
			out = out.With(n)
		}
	}
	return out
}

// FreeTrajectory reports whether every square strictly between from and to
// is empty. Knight jumps are never blocked, and displacements that are not
// lines have no intervening squares.
func FreeTrajectory(g Grid, from, to core.Square) bool {
	if IsKnightJump(from, to) {
		return true
	}
	h, v := delta(from, to)
	if h != 0 && v != 0 && abs(h) != abs(v) {
		return true
	}
	df, dr := sign(h), sign(v)
	sq := core.Square{File: from.File + df, Rank: from.Rank + dr}
	for sq != to {
		if g.Occupied(sq) {
			return false
		}
		sq = core.Square{File: sq.File + df, Rank: sq.Rank + dr}
	}
	return true
}
