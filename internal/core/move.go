package core

import (
	"fmt"
	"strings"
)

type Move struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

// String renders the move as "e2e4".
func (m Move) String() string {
	return m.From.String() + m.To.String()
}

// ParseMove accepts "e2e4" or "e2 e4".
func ParseMove(s string) (Move, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if len(s) != 4 {
		return Move{}, fmt.Errorf("invalid move: %q", s)
	}
	from, err := ParseSquare(s[:2])
	if err != nil {
		return Move{}, err
	}
	to, err := ParseSquare(s[2:])
	if err != nil {
		return Move{}, err
	}
	return Move{From: from, To: to}, nil
}
