package board

import (
	"fmt"
	"strconv"
	"strings"

	"schroedinger/internal/core"
)

type RenderMode string

const (
	RenderIDs     RenderMode = "ids"     // Colour and slot of every piece
	RenderGuess   RenderMode = "guess"   // Advisory nature guess
	RenderNatures RenderMode = "natures" // Number of remaining candidate natures
)

func ParseRenderMode(s string) (RenderMode, error) {
	switch RenderMode(s) {
	case RenderIDs, RenderGuess, RenderNatures:
		return RenderMode(s), nil
	case "":
		return RenderIDs, nil
	}
	return "", fmt.Errorf("invalid render mode: %q", s)
}

func colorLetter(p Piece) string {
	l := "W"
	if p.ID.Color == core.ColorBlack {
		l = "B"
	}
	if p.Natures.Has(core.Pawn) {
		l = strings.ToLower(l)
	}
	return l
}

func (b *Board) cell(sq core.Square, mode RenderMode) string {
	p, ok := b.PieceAt(sq)
	switch mode {
	case RenderGuess:
		if !ok {
			return "."
		}
		return string(p.Guess.Letter(p.ID.Color))
	case RenderNatures:
		if !ok {
			return "--"
		}
		return colorLetter(p) + strconv.Itoa(p.Natures.Len())
	default:
		if !ok {
			return "--"
		}
		return colorLetter(p) + strconv.Itoa(p.ID.Slot)
	}
}

// ASCII renders the board with rank 8 on top
func (b *Board) ASCII(mode RenderMode) string {
	width := 3
	if mode == RenderGuess {
		width = 1
	}

	var sb strings.Builder
	sb.WriteString("  ")
	for f := 0; f < 8; f++ {
		fmt.Fprintf(&sb, "%-*c ", width, 'a'+f)
	}
	sb.WriteString("\n")

	for r := 7; r >= 0; r-- {
		fmt.Fprintf(&sb, "%d ", r+1)
		for f := 0; f < 8; f++ {
			fmt.Fprintf(&sb, "%-*s ", width, b.cell(core.Square{File: f, Rank: r}, mode))
		}
		fmt.Fprintf(&sb, " %d\n", r+1)
	}
	sb.WriteString("  ")
	for f := 0; f < 8; f++ {
		fmt.Fprintf(&sb, "%-*c ", width, 'a'+f)
	}

	return sb.String()
}

// GuessFEN encodes the advisory guess position as FEN. Castling and en
// passant do not exist in this variant.
func (b *Board) GuessFEN() string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		empty := 0
		for f := 0; f < 8; f++ {
			p, ok := b.PieceAt(core.Square{File: f, Rank: r})
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(p.Guess.Letter(p.ID.Color))
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}
	fmt.Fprintf(&sb, " %s - - 0 %d", b.Turn(), b.Ply()/2+1)
	return sb.String()
}
