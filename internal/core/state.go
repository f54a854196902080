package core

import "fmt"

type State int32

const (
	StateAwaitingMove State = iota
	StateValidating         // A move or query is being checked by the solver
	StatePending            // Computer move is queued or calculating
	StateEnded
	StateCorrupt // History/undo asymmetry detected, game refuses further calls
)

func (s State) String() string {
	switch s {
	case StateAwaitingMove:
		return "awaiting_move"
	case StateValidating:
		return "validating"
	case StatePending:
		return "pending"
	case StateEnded:
		return "ended"
	case StateCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

type OutcomeKind int

const (
	InProgress OutcomeKind = iota
	Checkmate
	Stalemate
	Ambiguous // Both checkmate and stalemate remain consistent with history
)

func (k OutcomeKind) String() string {
	switch k {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case Ambiguous:
		return "ambiguous"
	default:
		return "in_progress"
	}
}

func ParseOutcomeKind(s string) (OutcomeKind, error) {
	for k := InProgress; k <= Ambiguous; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return InProgress, fmt.Errorf("invalid outcome: %q", s)
}

// Outcome is the end-of-game verdict. Loser is meaningful for Checkmate only.
type Outcome struct {
	Kind  OutcomeKind
	Loser Color
}

func (o Outcome) Over() bool {
	return o.Kind != InProgress
}

func (o Outcome) String() string {
	switch o.Kind {
	case Checkmate:
		return o.Loser.Name() + " checkmated"
	case Stalemate:
		return "stalemate"
	case Ambiguous:
		return "result unclear"
	default:
		return "in progress"
	}
}
