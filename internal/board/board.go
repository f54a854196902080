package board

import (
	"errors"
	"fmt"

	"schroedinger/internal/core"
	"schroedinger/internal/geometry"
)

// ErrHistoryCorrupt reports an apply/rollback asymmetry. It is never recoverable.
var ErrHistoryCorrupt = errors.New("board: history corrupt")

const pieceCount = 2 * core.SlotsPerColor

type Status uint8

const (
	OffBoard Status = iota // Unused promotion slot, or a pawn that promoted
	OnBoard
	Captured
)

func (s Status) String() string {
	switch s {
	case OnBoard:
		return "on_board"
	case Captured:
		return "captured"
	default:
		return "off_board"
	}
}

// Piece is the uncertainty state of one PieceID.
type Piece struct {
	ID        core.PieceID
	Natures   core.NatureSet
	Forbidden core.NatureSet // Only set while a what-if query runs
	Guess     core.Nature    // Advisory, never ground truth
	Status    Status
	Square    core.Square // Valid when Status == OnBoard
}

func (p Piece) OnBoard() bool {
	return p.Status == OnBoard
}

// Record is one committed or provisional ply.
type Record struct {
	core.Move
	Mover      core.PieceID
	Captured   core.PieceID
	Capture    bool
	Promotion  bool
	Eliminated core.NatureSet // Pre-move natures of the mover that cannot make this move
}

// Placed returns the piece that ends up on the destination square.
func (r Record) Placed() core.PieceID {
	if r.Promotion {
		return core.PieceID{Color: r.Mover.Color, Slot: core.PromotionSlot(r.Mover.Slot)}
	}
	return r.Mover
}

// Board holds the grid, the move history and the per-ply tensor arena.
// It is not safe for concurrent use.
type Board struct {
	pieces  [pieceCount]Piece
	grid    [64]int8 // piece index, -1 when empty
	history []Record
	plies   []Tensors // len(plies) == len(history)+1
}

var standardGuess = [core.MajorSlots]core.Nature{
	core.Rook, core.Knight, core.Bishop, core.Queen, core.King, core.Bishop, core.Knight, core.Rook,
}

// DefaultGuess is the starting advisory nature of a slot.
func DefaultGuess(slot int) core.Nature {
	switch {
	case slot < core.FirstPawnSlot:
		return standardGuess[slot]
	case slot < core.FirstPromotionSlot:
		return core.Pawn
	default:
		return core.Queen
	}
}

func defaultNatures(id core.PieceID) core.NatureSet {
	switch {
	case id.IsPawn():
		return core.PawnSet
	case id.IsPromotion():
		return core.PromotionSet
	default:
		return core.MajorSet
	}
}

func emptyBoard() *Board {
	b := &Board{}
	for i := range b.grid {
		b.grid[i] = -1
	}
	for i := range b.pieces {
		id := core.PieceIDFromIndex(i)
		b.pieces[i] = Piece{
			ID:      id,
			Natures: defaultNatures(id),
			Guess:   DefaultGuess(id.Slot),
			Status:  OffBoard,
		}
	}
	return b
}

// New returns the standard starting position with every non-pawn uncertain.
func New() *Board {
	b := emptyBoard()
	for _, c := range core.Colors {
		back, pawns := 0, 1
		if c == core.ColorBlack {
			back, pawns = 7, 6
		}
		for f := 0; f < 8; f++ {
			b.place(core.PieceID{Color: c, Slot: f}, core.Square{File: f, Rank: back})
			b.place(core.PieceID{Color: c, Slot: core.FirstPawnSlot + f}, core.Square{File: f, Rank: pawns})
		}
	}
	b.plies = []Tensors{b.computeTensors()}
	return b
}

// Placement puts a piece on a square for a custom position. A zero Natures
// keeps the slot default.
type Placement struct {
	ID      core.PieceID
	Square  core.Square
	Natures core.NatureSet
}

// NewFromPlacements builds a position at ply 0 with white to move. Original
// and pawn slots that are not placed count as captured.
func NewFromPlacements(placements []Placement) (*Board, error) {
	b := emptyBoard()
	for i := range b.pieces {
		if !b.pieces[i].ID.IsPromotion() {
			b.pieces[i].Status = Captured
		}
	}
	for _, pl := range placements {
		if !pl.ID.Valid() {
			return nil, fmt.Errorf("invalid piece id %v", pl.ID)
		}
		if !pl.Square.OnBoard() {
			return nil, fmt.Errorf("piece %v placed off board", pl.ID)
		}
		if b.grid[pl.Square.Index()] >= 0 {
			return nil, fmt.Errorf("square %s placed twice", pl.Square)
		}
		p := &b.pieces[pl.ID.Index()]
		if p.OnBoard() {
			return nil, fmt.Errorf("piece %v placed twice", pl.ID)
		}
		if !pl.Natures.IsEmpty() {
			if pl.ID.IsPawn() != (pl.Natures == core.PawnSet) {
				return nil, fmt.Errorf("piece %v cannot have natures %s", pl.ID, pl.Natures)
			}
			p.Natures = pl.Natures
			if !p.Natures.Has(p.Guess) {
				p.Guess = p.Natures.Natures()[0]
			}
		}
		b.place(pl.ID, pl.Square)
	}
	b.plies = []Tensors{b.computeTensors()}
	return b, nil
}

func (b *Board) place(id core.PieceID, sq core.Square) {
	p := &b.pieces[id.Index()]
	p.Status = OnBoard
	p.Square = sq
	b.grid[sq.Index()] = int8(id.Index())
}

// Ply is the number of moves played, which is also the current time index.
func (b *Board) Ply() int {
	return len(b.history)
}

// Turn is the colour to move.
func (b *Board) Turn() core.Color {
	return core.Color(b.Ply() % 2)
}

func (b *Board) Piece(id core.PieceID) Piece {
	return b.pieces[id.Index()]
}

// Pieces returns a copy of every piece in PieceID index order.
func (b *Board) Pieces() []Piece {
	out := make([]Piece, pieceCount)
	copy(out, b.pieces[:])
	return out
}

func (b *Board) PieceAt(sq core.Square) (Piece, bool) {
	if !sq.OnBoard() {
		return Piece{}, false
	}
	idx := b.grid[sq.Index()]
	if idx < 0 {
		return Piece{}, false
	}
	return b.pieces[idx], true
}

// Occupied implements geometry.Grid.
func (b *Board) Occupied(sq core.Square) bool {
	return sq.OnBoard() && b.grid[sq.Index()] >= 0
}

// Occupancy classifies the destination relative to colour c.
func (b *Board) Occupancy(sq core.Square, c core.Color) geometry.Occupancy {
	p, ok := b.PieceAt(sq)
	switch {
	case !ok:
		return geometry.Empty
	case p.ID.Color == c:
		return geometry.Friend
	default:
		return geometry.Enemy
	}
}

// Record returns the move that produced ply t+1.
func (b *Board) Record(t int) Record {
	return b.history[t]
}

func (b *Board) History() []Record {
	out := make([]Record, len(b.history))
	copy(out, b.history)
	return out
}

// TensorsAt returns the tensors of ply t. Callers must not modify them.
func (b *Board) TensorsAt(t int) *Tensors {
	return &b.plies[t]
}

// ApplyProvisional plays the move without any legality check beyond a
// non-empty source and a non-friendly destination. It is undone exactly by
// RollbackLast.
func (b *Board) ApplyProvisional(m core.Move) (Record, error) {
	if !m.From.OnBoard() || !m.To.OnBoard() {
		return Record{}, core.ErrOffBoard
	}
	mover, ok := b.PieceAt(m.From)
	if !ok {
		return Record{}, core.ErrEmptySource
	}
	c := mover.ID.Color
	occ := b.Occupancy(m.To, c)
	if occ == geometry.Friend {
		return Record{}, core.ErrFriendlyCapture
	}

	rec := Record{
		Move:       m,
		Mover:      mover.ID,
		Eliminated: mover.Natures.Without(geometry.PossibleNatures(m.From, m.To, mover.Natures, c, occ)),
	}
	rec.Promotion = mover.Natures.Has(core.Pawn) && m.To.Rank == geometry.LastRank(c)
	if rec.Promotion && b.pieces[rec.Placed().Index()].Status != OffBoard {
		return Record{}, fmt.Errorf("promotion slot of %v already in use", mover.ID)
	}
	if target, ok := b.PieceAt(m.To); ok {
		rec.Capture = true
		rec.Captured = target.ID
		b.pieces[target.ID.Index()].Status = Captured
	}

	b.grid[m.From.Index()] = -1
	if rec.Promotion {
		b.pieces[mover.ID.Index()].Status = OffBoard
		b.place(rec.Placed(), m.To)
	} else {
		b.place(mover.ID, m.To)
	}

	b.history = append(b.history, rec)
	b.plies = append(b.plies, b.computeTensors())
	return rec, nil
}

// RollbackLast undoes the most recent ApplyProvisional.
func (b *Board) RollbackLast() error {
	n := len(b.history)
	if n == 0 || len(b.plies) != n+1 {
		return ErrHistoryCorrupt
	}
	rec := b.history[n-1]
	placed := rec.Placed()
	if b.grid[rec.To.Index()] != int8(placed.Index()) || b.grid[rec.From.Index()] != -1 {
		return fmt.Errorf("%w: ply %d does not match the grid", ErrHistoryCorrupt, n)
	}

	if rec.Promotion {
		b.pieces[placed.Index()].Status = OffBoard
		b.pieces[placed.Index()].Square = core.Square{}
	}
	b.place(rec.Mover, rec.From)
	b.grid[rec.To.Index()] = -1
	if rec.Capture {
		b.place(rec.Captured, rec.To)
	}

	b.history = b.history[:n-1]
	b.plies = b.plies[:n]
	return nil
}

// Narrow replaces the candidate set of a piece. The new set must be a
// non-empty subset of the current one.
func (b *Board) Narrow(id core.PieceID, natures core.NatureSet) error {
	p := &b.pieces[id.Index()]
	if natures.IsEmpty() || !natures.IsSubsetOf(p.Natures) {
		return fmt.Errorf("cannot narrow %v from %s to %s", id, p.Natures, natures)
	}
	p.Natures = natures
	if !natures.Has(p.Guess) {
		p.Guess = natures.Natures()[0]
	}
	return nil
}

// Forbid sets the transient forbidden natures of a piece. The returned
// release func clears them and must be called on every path.
func (b *Board) Forbid(id core.PieceID, natures core.NatureSet) (release func()) {
	p := &b.pieces[id.Index()]
	p.Forbidden = natures
	return func() {
		p.Forbidden = core.NoNatures
	}
}

func (b *Board) SetGuess(id core.PieceID, n core.Nature) {
	b.pieces[id.Index()].Guess = n
}
