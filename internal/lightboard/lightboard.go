// Package lightboard is the public projection of a game: colour, candidate
// natures and position of every piece, nothing else.
package lightboard

import (
	"fmt"

	"schroedinger/internal/board"
	"schroedinger/internal/core"
	"schroedinger/internal/geometry"
)

const size = 2 * core.SlotsPerColor

type Entry struct {
	ID      core.PieceID
	Natures core.NatureSet
	Square  core.Square
	OnBoard bool
	Dead    bool
}

// LightBoard is a value snapshot indexed by core.PieceID.Index.
type LightBoard struct {
	Entries [size]Entry
}

// PieceSource is anything that can list its pieces, usually *board.Board.
type PieceSource interface {
	Pieces() []board.Piece
}

func FromBoard(src PieceSource) LightBoard {
	var lb LightBoard
	for _, p := range src.Pieces() {
		lb.Entries[p.ID.Index()] = Entry{
			ID:      p.ID,
			Natures: p.Natures,
			Square:  p.Square,
			OnBoard: p.OnBoard(),
			Dead:    p.Status == board.Captured,
		}
	}
	return lb
}

// New is the public view of the starting position.
func New() LightBoard {
	return FromBoard(board.New())
}

func (lb *LightBoard) index(sq core.Square) int {
	for i, e := range lb.Entries {
		if e.OnBoard && e.Square == sq {
			return i
		}
	}
	return -1
}

func (lb LightBoard) At(sq core.Square) (Entry, bool) {
	if i := lb.index(sq); i >= 0 {
		return lb.Entries[i], true
	}
	return Entry{}, false
}

func (lb LightBoard) Get(id core.PieceID) Entry {
	return lb.Entries[id.Index()]
}

// Dead lists the captured pieces of a colour.
func (lb LightBoard) Dead(c core.Color) []Entry {
	var out []Entry
	for _, e := range lb.Entries {
		if e.Dead && e.ID.Color == c {
			out = append(out, e)
		}
	}
	return out
}

// Apply projects a move that was validated elsewhere: the mover keeps the
// natures able to make it, a captured piece is marked dead and a promoting
// pawn hands over to its promotion slot.
func (lb *LightBoard) Apply(m core.Move) error {
	i := lb.index(m.From)
	if i < 0 {
		return fmt.Errorf("no piece on %s", m.From)
	}
	mover := lb.Entries[i]
	c := mover.ID.Color

	occ := geometry.Empty
	j := lb.index(m.To)
	if j >= 0 {
		if lb.Entries[j].ID.Color == c {
			return fmt.Errorf("square %s holds a friendly piece", m.To)
		}
		occ = geometry.Enemy
	}

	natures := geometry.PossibleNatures(m.From, m.To, mover.Natures, c, occ)
	if natures.IsEmpty() {
		return fmt.Errorf("move %s is impossible for natures %s", m, mover.Natures)
	}

	if j >= 0 {
		lb.Entries[j].OnBoard = false
		lb.Entries[j].Dead = true
	}

	if natures.Has(core.Pawn) && m.To.Rank == geometry.LastRank(c) {
		lb.Entries[i].OnBoard = false
		promo := core.PieceID{Color: c, Slot: core.PromotionSlot(mover.ID.Slot)}
		lb.Entries[promo.Index()] = Entry{ID: promo, Natures: core.PromotionSet, Square: m.To, OnBoard: true}
		return nil
	}

	lb.Entries[i].Natures = natures
	lb.Entries[i].Square = m.To
	return nil
}

// Pieces converts the view for the API, skipping unused promotion slots.
func (lb LightBoard) Pieces() []core.PieceInfo {
	out := make([]core.PieceInfo, 0, size)
	for _, e := range lb.Entries {
		if !e.OnBoard && !e.Dead {
			continue
		}
		info := core.PieceInfo{
			Color:   e.ID.Color.String(),
			Slot:    e.ID.Slot,
			Natures: e.Natures,
			Dead:    e.Dead,
		}
		if e.OnBoard {
			info.Square = e.Square.String()
		}
		out = append(out, info)
	}
	return out
}

// Conflicts compares the view with an authoritative piece list, as sent by
// a server. Positions and deaths must agree; the authority may only hold
// fewer natures, never more.
func (lb LightBoard) Conflicts(pieces []core.PieceInfo) []string {
	var out []string
	seen := make(map[int]bool, len(pieces))
	for _, p := range pieces {
		c, err := core.ParseColor(p.Color)
		id := core.PieceID{Color: c, Slot: p.Slot}
		if err != nil || !id.Valid() {
			out = append(out, fmt.Sprintf("invalid piece %s%d", p.Color, p.Slot))
			continue
		}
		seen[id.Index()] = true

		e := lb.Get(id)
		square := ""
		if e.OnBoard {
			square = e.Square.String()
		}
		switch {
		case !e.OnBoard && !e.Dead:
			out = append(out, fmt.Sprintf("%s: not in view", id))
		case e.Dead != p.Dead:
			out = append(out, fmt.Sprintf("%s: dead=%t, server dead=%t", id, e.Dead, p.Dead))
		case square != p.Square:
			out = append(out, fmt.Sprintf("%s: on %q, server on %q", id, square, p.Square))
		case !p.Natures.IsSubsetOf(e.Natures):
			out = append(out, fmt.Sprintf("%s: natures %s, server %s", id, e.Natures, p.Natures))
		}
	}
	for i, e := range lb.Entries {
		if (e.OnBoard || e.Dead) && !seen[i] {
			out = append(out, fmt.Sprintf("%s: missing on server", e.ID))
		}
	}
	return out
}
