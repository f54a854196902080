package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Nature is the true chess role of a piece.
type Nature uint8

const (
	King Nature = iota
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

const NatureCount = 6

// MajorNatures are the candidates of every non-pawn piece, in solver order.
var MajorNatures = [5]Nature{King, Queen, Rook, Bishop, Knight}

var natureLetters = [NatureCount]byte{'K', 'Q', 'R', 'B', 'N', 'P'}

func (n Nature) String() string {
	if int(n) >= NatureCount {
		return "?"
	}
	return string(natureLetters[n])
}

// Letter returns the FEN letter of the nature for the given colour.
func (n Nature) Letter(c Color) byte {
	if int(n) >= NatureCount {
		return '?'
	}
	l := natureLetters[n]
	if c == ColorBlack {
		l += 'a' - 'A'
	}
	return l
}

func ParseNature(s string) (Nature, error) {
	if len(s) == 1 {
		up := strings.ToUpper(s)[0]
		for i, l := range natureLetters {
			if l == up {
				return Nature(i), nil
			}
		}
	}
	return 0, fmt.Errorf("invalid nature: %q", s)
}

// NatureSet is a bit set over Nature.
type NatureSet uint8

const (
	NoNatures    NatureSet = 0
	MajorSet     NatureSet = 1<<King | 1<<Queen | 1<<Rook | 1<<Bishop | 1<<Knight
	PromotionSet NatureSet = 1<<Queen | 1<<Rook | 1<<Bishop | 1<<Knight
	PawnSet      NatureSet = 1 << Pawn
	AllNatures   NatureSet = MajorSet | PawnSet
)

func NewNatureSet(ns ...Nature) NatureSet {
	var s NatureSet
	for _, n := range ns {
		s |= 1 << n
	}
	return s
}

func (s NatureSet) Has(n Nature) bool {
	return s&(1<<n) != 0
}

func (s NatureSet) With(n Nature) NatureSet {
	return s | 1<<n
}

func (s NatureSet) Without(other NatureSet) NatureSet {
	return s &^ other
}

func (s NatureSet) Intersect(other NatureSet) NatureSet {
	return s & other
}

func (s NatureSet) IsEmpty() bool {
	return s == 0
}

// IsSubsetOf reports whether every nature of s is in other.
func (s NatureSet) IsSubsetOf(other NatureSet) bool {
	return s&^other == 0
}

func (s NatureSet) Len() int {
	count := 0
	for v := s; v != 0; v &= v - 1 {
		count++
	}
	return count
}

// Single returns the only nature of a singleton set.
func (s NatureSet) Single() (Nature, bool) {
	if s.Len() != 1 {
		return 0, false
	}
	for n := Nature(0); n < NatureCount; n++ {
		if s.Has(n) {
			return n, true
		}
	}
	return 0, false
}

func (s NatureSet) Natures() []Nature {
	out := make([]Nature, 0, s.Len())
	for n := Nature(0); n < NatureCount; n++ {
		if s.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

func (s NatureSet) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, n := range s.Natures() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(n.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func (s NatureSet) MarshalJSON() ([]byte, error) {
	letters := make([]string, 0, s.Len())
	for _, n := range s.Natures() {
		letters = append(letters, n.String())
	}
	return json.Marshal(letters)
}

func (s *NatureSet) UnmarshalJSON(data []byte) error {
	var letters []string
	if err := json.Unmarshal(data, &letters); err != nil {
		return err
	}
	var set NatureSet
	for _, l := range letters {
		n, err := ParseNature(l)
		if err != nil {
			return err
		}
		set = set.With(n)
	}
	*s = set
	return nil
}
