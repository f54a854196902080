package core

import "fmt"

// Square is a (file, rank) pair, both 0-7; a1 is (0,0).
type Square struct {
	File int
	Rank int
}

func (s Square) OnBoard() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

// Index maps an on-board square to 0-63 (file-major).
func (s Square) Index() int {
	return 8*s.File + s.Rank
}

func SquareFromIndex(i int) Square {
	return Square{File: i / 8, Rank: i % 8}
}

// IsLight reports whether the square is light-coloured (a1 is dark).
func (s Square) IsLight() bool {
	return (s.File+s.Rank)%2 == 1
}

func (s Square) String() string {
	if !s.OnBoard() {
		return fmt.Sprintf("(%d,%d)", s.File, s.Rank)
	}
	return string([]byte{byte('a' + s.File), byte('1' + s.Rank)})
}

// ParseSquare reads algebraic notation such as "e4".
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return Square{}, fmt.Errorf("invalid square: %q", s)
	}
	return Square{File: int(s[0] - 'a'), Rank: int(s[1] - '1')}, nil
}

func (s Square) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Square) UnmarshalText(b []byte) error {
	parsed, err := ParseSquare(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
