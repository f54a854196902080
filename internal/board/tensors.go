package board

import (
	"math/bits"

	"schroedinger/internal/core"
	"schroedinger/internal/geometry"
)

// Tensors are the solver inputs of one ply, stored as square bitboards
// (bit i is core.SquareFromIndex(i)).
type Tensors struct {
	// Position[c][slot] has the bit of the square the piece stands on.
	Position [2][core.SlotsPerColor]uint64
	// Attack[c][slot][n] has every square the piece could reach if it had
	// nature n. Pawns fill only the Pawn layer, with capture squares.
	Attack [2][core.SlotsPerColor][core.NatureCount]uint64
	// Alive counts on-board pieces per colour.
	Alive [2]int
}

func bit(sq core.Square) uint64 {
	return 1 << uint(sq.Index())
}

// Has reports whether bitboard bb contains sq.
func Has(bb uint64, sq core.Square) bool {
	return bb&bit(sq) != 0
}

// Squares lists the squares of a bitboard in index order.
func Squares(bb uint64) []core.Square {
	out := make([]core.Square, 0, bits.OnesCount64(bb))
	for bb != 0 {
		i := bits.TrailingZeros64(bb)
		out = append(out, core.SquareFromIndex(i))
		bb &= bb - 1
	}
	return out
}

// AttackedBy returns the union of every attack layer of colour c.
func (t *Tensors) AttackedBy(c core.Color) uint64 {
	var bb uint64
	for slot := range t.Attack[c] {
		for _, layer := range t.Attack[c][slot] {
			bb |= layer
		}
	}
	return bb
}

func (b *Board) computeTensors() Tensors {
	var t Tensors
	for i := range b.pieces {
		p := &b.pieces[i]
		if !p.OnBoard() {
			continue
		}
		c, slot := p.ID.Color, p.ID.Slot
		t.Position[c][slot] = bit(p.Square)
		t.Alive[c]++

		if p.ID.IsPawn() {
			for s := 0; s < 64; s++ {
				to := core.SquareFromIndex(s)
				if geometry.PawnCouldTake(p.Square, to, c) {
					t.Attack[c][slot][core.Pawn] |= bit(to)
				}
			}
			continue
		}

		natures := p.Natures.Without(core.PawnSet)
		for s := 0; s < 64; s++ {
			to := core.SquareFromIndex(s)
			if !geometry.MoveExists(p.Square, to) || !geometry.FreeTrajectory(b, p.Square, to) {
				continue
			}
			for _, n := range natures.Natures() {
				if geometry.PossibleMove(p.Square, to, n, c, geometry.Empty) {
					t.Attack[c][slot][n] |= bit(to)
				}
			}
		}
	}
	return t
}
