package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"schroedinger/internal/core"
)

func sq(t *testing.T, s string) core.Square {
	t.Helper()
	parsed, err := core.ParseSquare(s)
	if err != nil {
		t.Fatalf("bad square %q: %v", s, err)
	}
	return parsed
}

type gridSet map[core.Square]bool

func (g gridSet) Occupied(s core.Square) bool { return g[s] }

func TestMoveExists(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"a1", "a1", false},
		{"a1", "a8", true},
		{"a1", "h1", true},
		{"a1", "h8", true},
		{"b1", "c3", true},
		{"b1", "d2", true},
		{"a1", "c4", false}, // broken knight
		{"a1", "b4", false},
		{"e4", "f5", true},
		{"e4", "g7", false},
	}
	for _, tt := range tests {
		t.Run(tt.from+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, MoveExists(sq(t, tt.from), sq(t, tt.to)))
		})
	}
}

func TestPossibleMove(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		nature   core.Nature
		color    core.Color
		occ      Occupancy
		want     bool
	}{
		{"king step", "e1", "f2", core.King, core.ColorWhite, Empty, true},
		{"king two", "e1", "g1", core.King, core.ColorWhite, Empty, false},
		{"queen file", "d1", "d7", core.Queen, core.ColorWhite, Enemy, true},
		{"queen diag", "d1", "h5", core.Queen, core.ColorWhite, Empty, true},
		{"queen knight shape", "d1", "e3", core.Queen, core.ColorWhite, Empty, false},
		{"rook rank", "a1", "h1", core.Rook, core.ColorWhite, Empty, true},
		{"rook diag", "a1", "b2", core.Rook, core.ColorWhite, Empty, false},
		{"bishop diag", "c1", "a3", core.Bishop, core.ColorWhite, Empty, true},
		{"bishop file", "c1", "c3", core.Bishop, core.ColorWhite, Empty, false},
		{"knight", "b1", "c3", core.Knight, core.ColorWhite, Empty, true},
		{"pawn single", "e2", "e3", core.Pawn, core.ColorWhite, Empty, true},
		{"pawn double home", "e2", "e4", core.Pawn, core.ColorWhite, Empty, true},
		{"pawn double away", "e3", "e5", core.Pawn, core.ColorWhite, Empty, false},
		{"pawn backwards", "e3", "e2", core.Pawn, core.ColorWhite, Empty, false},
		{"pawn push onto enemy", "e2", "e3", core.Pawn, core.ColorWhite, Enemy, false},
		{"pawn capture", "e2", "d3", core.Pawn, core.ColorWhite, Enemy, true},
		{"pawn capture empty", "e2", "d3", core.Pawn, core.ColorWhite, Empty, false},
		{"pawn friend", "e2", "d3", core.Pawn, core.ColorWhite, Friend, false},
		{"black pawn double", "d7", "d5", core.Pawn, core.ColorBlack, Empty, true},
		{"black pawn capture", "d5", "e4", core.Pawn, core.ColorBlack, Enemy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PossibleMove(sq(t, tt.from), sq(t, tt.to), tt.nature, tt.color, tt.occ)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPossibleNatures(t *testing.T) {
	got := PossibleNatures(core.Square{File: 0, Rank: 0}, core.Square{File: 1, Rank: 2}, core.MajorSet, core.ColorWhite, Empty)
	assert.Equal(t, core.NewNatureSet(core.Knight), got)

	got = PossibleNatures(sq(t, "d1"), sq(t, "d2"), core.MajorSet, core.ColorWhite, Empty)
	assert.Equal(t, core.NewNatureSet(core.King, core.Queen, core.Rook), got)
}

func TestFreeTrajectory(t *testing.T) {
	g := gridSet{sq(t, "a2"): true, sq(t, "b2"): true, sq(t, "c3"): true}

	assert.True(t, FreeTrajectory(g, sq(t, "b1"), sq(t, "c3")), "knight jumps over anything")
	assert.False(t, FreeTrajectory(g, sq(t, "a1"), sq(t, "a3")))
	assert.True(t, FreeTrajectory(g, sq(t, "a1"), sq(t, "a2")), "destination itself does not block")
	assert.False(t, FreeTrajectory(g, sq(t, "a1"), sq(t, "d4")))
	assert.True(t, FreeTrajectory(g, sq(t, "a1"), sq(t, "h1")))
	assert.True(t, FreeTrajectory(g, sq(t, "d4"), sq(t, "d8")))
	assert.False(t, FreeTrajectory(g, sq(t, "e1"), sq(t, "a5")), "c3 blocks the diagonal")
}
