// Package consistency encodes a board history as a 0/1 feasibility problem
// over the hidden natures of every non-pawn piece.
package consistency

import (
	"fmt"

	"schroedinger/internal/board"
	"schroedinger/internal/core"
	"schroedinger/internal/solver"
)

// History is the read-only view of a board the encoder needs.
type History interface {
	Ply() int
	Piece(id core.PieceID) board.Piece
	Record(t int) board.Record
	TensorsAt(t int) *board.Tensors
}

type Query int

const (
	QueryMove       Query = iota // History including a provisional move
	QueryNature                  // History with transient forbidden natures
	QueryInCheck                 // Side to move has its king attacked
	QueryNotInCheck              // Side to move has its king safe
)

func (q Query) String() string {
	switch q {
	case QueryNature:
		return "nature"
	case QueryInCheck:
		return "in-check"
	case QueryNotInCheck:
		return "not-in-check"
	default:
		return "move"
	}
}

var maxCount = [len(core.MajorNatures)]int{
	core.Queen:  1,
	core.Rook:   2,
	core.Bishop: 2,
	core.Knight: 2,
}

// bishop colour classes of original slots, by starting file parity
var bishopClasses = [2][4]int{{1, 3, 5, 7}, {0, 2, 4, 6}}

// Encoding is a Problem plus the mapping back to pieces.
type Encoding struct {
	Problem *solver.Problem
	z       [2][core.SlotsPerColor][len(core.MajorNatures)]solver.Var
}

func hasVars(slot int) bool {
	return slot < core.MajorSlots || slot >= core.FirstPromotionSlot
}

// Z is the indicator of piece id having nature n.
func (e *Encoding) Z(id core.PieceID, n core.Nature) solver.Var {
	return e.z[id.Color][id.Slot][n]
}

// Assignment is one concrete nature per non-pawn piece.
type Assignment map[core.PieceID]core.Nature

// Decode reads the assignment of a feasible result.
func (e *Encoding) Decode(res solver.Result) Assignment {
	if !res.Feasible {
		return nil
	}
	out := make(Assignment)
	for _, c := range core.Colors {
		for slot := 0; slot < core.SlotsPerColor; slot++ {
			if !hasVars(slot) {
				continue
			}
			for _, n := range core.MajorNatures {
				if res.Value(e.z[c][slot][n]) {
					out[core.PieceID{Color: c, Slot: slot}] = n
				}
			}
		}
	}
	return out
}

// Encode builds the problem for history h and query q.
func Encode(h History, q Query) *Encoding {
	e := &Encoding{Problem: solver.NewProblem(q.String())}
	p := e.Problem

	for _, c := range core.Colors {
		for slot := 0; slot < core.SlotsPerColor; slot++ {
			if !hasVars(slot) {
				continue
			}
			for _, n := range core.MajorNatures {
				e.z[c][slot][n] = p.NewVar(fmt.Sprintf("z_%s%d_%s", c, slot, n))
			}
		}
	}

	e.addComposition()
	e.addPieceStates(h)
	e.addEliminations(h)
	for t := 1; t <= h.Ply(); t++ {
		attacker := core.Color(t % 2)
		e.addKingSafety(h.TensorsAt(t), core.OppositeColor(attacker), fmt.Sprintf("t%d", t))
	}

	T := h.Ply()
	side := core.Color(T % 2)
	switch q {
	case QueryInCheck:
		e.addInCheck(h.TensorsAt(T), side)
	case QueryNotInCheck:
		e.addKingSafety(h.TensorsAt(T), side, "now")
	}
	return e
}

func (e *Encoding) addComposition() {
	p := e.Problem
	for _, c := range core.Colors {
		for slot := 0; slot < core.SlotsPerColor; slot++ {
			if hasVars(slot) {
				p.AddEQ(fmt.Sprintf("one nature %s%d", c, slot), solver.Ones(e.z[c][slot][:]...), 1)
			}
		}

		for _, n := range core.MajorNatures {
			vars := make([]solver.Var, 0, core.MajorSlots)
			for slot := 0; slot < core.MajorSlots; slot++ {
				vars = append(vars, e.z[c][slot][n])
			}
			if n == core.King {
				p.AddEQ(fmt.Sprintf("one king %s", c), solver.Ones(vars...), 1)
			} else {
				p.AddLE(fmt.Sprintf("max %s %s", n, c), solver.Ones(vars...), maxCount[n])
			}
		}

		for slot := core.FirstPromotionSlot; slot < core.SlotsPerColor; slot++ {
			p.Fix(fmt.Sprintf("no promoted king %s%d", c, slot), e.z[c][slot][core.King], false)
		}

		for i, class := range bishopClasses {
			vars := make([]solver.Var, 0, len(class))
			for _, slot := range class {
				vars = append(vars, e.z[c][slot][core.Bishop])
			}
			p.AddEQ(fmt.Sprintf("bishop class %d %s", i, c), solver.Ones(vars...), 1)
		}
	}
}

// addPieceStates forces to 0 every nature outside a piece's candidate set
// and every transiently forbidden nature.
func (e *Encoding) addPieceStates(h History) {
	for _, c := range core.Colors {
		for slot := 0; slot < core.SlotsPerColor; slot++ {
			if !hasVars(slot) {
				continue
			}
			piece := h.Piece(core.PieceID{Color: c, Slot: slot})
			for _, n := range core.MajorNatures {
				switch {
				case piece.Forbidden.Has(n):
					e.Problem.Fix(fmt.Sprintf("forbidden %s%d %s", c, slot, n), e.z[c][slot][n], false)
				case !piece.Natures.Has(n):
					e.Problem.Fix(fmt.Sprintf("excluded %s%d %s", c, slot, n), e.z[c][slot][n], false)
				}
			}
		}
	}
}

func (e *Encoding) addEliminations(h History) {
	for t := 0; t < h.Ply(); t++ {
		rec := h.Record(t)
		if !hasVars(rec.Mover.Slot) {
			continue
		}
		for _, n := range rec.Eliminated.Without(core.PawnSet).Natures() {
			e.Problem.Fix(fmt.Sprintf("eliminated t%d %s %s", t, rec.Mover, n), e.Z(rec.Mover, n), false)
		}
	}
}

// dangers collects the attack indicators of colour attacker on sq. Pawn
// attacks are known and returned as a constant.
func (e *Encoding) dangers(ts *board.Tensors, attacker core.Color, sq core.Square) ([]solver.Term, int) {
	var terms []solver.Term
	constant := 0
	for slot := 0; slot < core.SlotsPerColor; slot++ {
		layers := &ts.Attack[attacker][slot]
		if !hasVars(slot) {
			if board.Has(layers[core.Pawn], sq) {
				constant++
			}
			continue
		}
		for _, n := range core.MajorNatures {
			if board.Has(layers[n], sq) {
				terms = append(terms, solver.Term{Var: e.z[attacker][slot][n], Coef: 1})
			}
		}
	}
	return terms, constant
}

// addKingSafety requires that no original piece of colour side standing on
// an attacked square is the king: M*king + dangers <= M - pawnDangers, where
// M bounds the dangers by the number of attacking pieces.
func (e *Encoding) addKingSafety(ts *board.Tensors, side core.Color, tag string) {
	attacker := core.OppositeColor(side)
	bigM := max(ts.Alive[attacker], 1)
	for slot := 0; slot < core.MajorSlots; slot++ {
		pos := ts.Position[side][slot]
		if pos == 0 {
			continue
		}
		sq := board.Squares(pos)[0]
		terms, constant := e.dangers(ts, attacker, sq)
		if len(terms) == 0 && constant == 0 {
			continue
		}
		terms = append(terms, solver.Term{Var: e.z[side][slot][core.King], Coef: bigM})
		e.Problem.AddLE(fmt.Sprintf("king safe %s %s%d %s", tag, side, slot, sq), terms, bigM-constant)
	}
}

// addInCheck requires the king of side to stand on some attacked square,
// through one auxiliary indicator per candidate square.
func (e *Encoding) addInCheck(ts *board.Tensors, side core.Color) {
	p := e.Problem
	attacker := core.OppositeColor(side)
	var ys []solver.Var
	for slot := 0; slot < core.MajorSlots; slot++ {
		pos := ts.Position[side][slot]
		if pos == 0 {
			continue
		}
		sq := board.Squares(pos)[0]
		terms, constant := e.dangers(ts, attacker, sq)
		if len(terms) == 0 && constant == 0 {
			continue
		}
		y := p.NewVar(fmt.Sprintf("check_%s", sq))
		ys = append(ys, y)
		p.AddLE(fmt.Sprintf("check %s needs king", sq), []solver.Term{{Var: y, Coef: 1}, {Var: e.z[side][slot][core.King], Coef: -1}}, 0)

		bound := []solver.Term{{Var: y, Coef: 1}}
		for _, t := range terms {
			bound = append(bound, solver.Term{Var: t.Var, Coef: -1})
		}
		p.AddLE(fmt.Sprintf("check %s needs attacker", sq), bound, constant)
	}
	p.AddGE("in check", solver.Ones(ys...), 1)
}
