package core

import "fmt"

// Slot layout per colour: 0-7 original non-pawn pieces by starting file,
// 8-15 pawns by starting file, 16-23 promotion slots.
const (
	SlotsPerColor      = 24
	MajorSlots         = 8
	FirstPawnSlot      = 8
	FirstPromotionSlot = 16
)

// PieceID is the stable identity of a piece for the whole game.
type PieceID struct {
	Color Color `json:"color"`
	Slot  int   `json:"slot"`
}

func (id PieceID) IsPawn() bool {
	return id.Slot >= FirstPawnSlot && id.Slot < FirstPromotionSlot
}

func (id PieceID) IsPromotion() bool {
	return id.Slot >= FirstPromotionSlot && id.Slot < SlotsPerColor
}

func (id PieceID) Valid() bool {
	return (id.Color == ColorWhite || id.Color == ColorBlack) && id.Slot >= 0 && id.Slot < SlotsPerColor
}

// Index flattens the id to 0-47.
func (id PieceID) Index() int {
	return int(id.Color)*SlotsPerColor + id.Slot
}

func PieceIDFromIndex(i int) PieceID {
	return PieceID{Color: Color(i / SlotsPerColor), Slot: i % SlotsPerColor}
}

func (id PieceID) String() string {
	return fmt.Sprintf("%s%d", id.Color, id.Slot)
}

// PromotionSlot returns the slot a pawn promotes into.
func PromotionSlot(pawnSlot int) int {
	return pawnSlot + FirstPromotionSlot - FirstPawnSlot
}
