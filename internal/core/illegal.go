package core

import "errors"

// Reason tags why a move was refused.
type Reason int

const (
	ReasonOffBoard Reason = iota + 1
	ReasonEmptySource
	ReasonWrongTurn
	ReasonFriendlyCapture
	ReasonNoSuchGeometricMove
	ReasonBlocked
	ReasonPawnRuleViolation
	ReasonGloballyInconsistent
	ReasonSolverInconclusive
)

var reasonTags = map[Reason]string{
	ReasonOffBoard:             "off_board",
	ReasonEmptySource:          "empty_source",
	ReasonWrongTurn:            "wrong_turn",
	ReasonFriendlyCapture:      "friendly_capture",
	ReasonNoSuchGeometricMove:  "no_such_geometric_move",
	ReasonBlocked:              "blocked",
	ReasonPawnRuleViolation:    "pawn_rule_violation",
	ReasonGloballyInconsistent: "globally_inconsistent",
	ReasonSolverInconclusive:   "solver_inconclusive",
}

var reasonMessages = map[Reason]string{
	ReasonOffBoard:             "trying to move outside of the board",
	ReasonEmptySource:          "trying to move the void",
	ReasonWrongTurn:            "trying to move out of turn",
	ReasonFriendlyCapture:      "trying to capture a piece of the same color",
	ReasonNoSuchGeometricMove:  "no remaining nature of this piece can perform this move",
	ReasonBlocked:              "trying to move through other pieces",
	ReasonPawnRuleViolation:    "trying to perform an illegal pawn move",
	ReasonGloballyInconsistent: "move is inconsistent with any piece configuration",
	ReasonSolverInconclusive:   "consistency check did not finish",
}

func (r Reason) String() string {
	if tag, ok := reasonTags[r]; ok {
		return tag
	}
	return "unknown"
}

// IllegalMoveError is the failure value of a refused move. It is normal game
// flow, not an exceptional condition.
type IllegalMoveError struct {
	Reason  Reason
	Message string
}

func (e *IllegalMoveError) Error() string {
	return e.Message
}

// Is matches any IllegalMoveError with the same reason.
func (e *IllegalMoveError) Is(target error) bool {
	t, ok := target.(*IllegalMoveError)
	return ok && t.Reason == e.Reason
}

func NewIllegalMove(r Reason) *IllegalMoveError {
	return &IllegalMoveError{Reason: r, Message: reasonMessages[r]}
}

// Sentinels for errors.Is.
var (
	ErrOffBoard             = NewIllegalMove(ReasonOffBoard)
	ErrEmptySource          = NewIllegalMove(ReasonEmptySource)
	ErrWrongTurn            = NewIllegalMove(ReasonWrongTurn)
	ErrFriendlyCapture      = NewIllegalMove(ReasonFriendlyCapture)
	ErrNoSuchGeometricMove  = NewIllegalMove(ReasonNoSuchGeometricMove)
	ErrBlocked              = NewIllegalMove(ReasonBlocked)
	ErrPawnRuleViolation    = NewIllegalMove(ReasonPawnRuleViolation)
	ErrGloballyInconsistent = NewIllegalMove(ReasonGloballyInconsistent)
	ErrSolverInconclusive   = NewIllegalMove(ReasonSolverInconclusive)
)

var (
	ErrGameOver    = errors.New("game is over")
	ErrGameCorrupt = errors.New("game history is corrupt")
)

// ReasonOf extracts the reason tag of an illegal move error.
func ReasonOf(err error) (Reason, bool) {
	var ime *IllegalMoveError
	if errors.As(err, &ime) {
		return ime.Reason, true
	}
	return 0, false
}
