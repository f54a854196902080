package core

// Request types

type CreateGameRequest struct {
	White PlayerConfig `json:"white" validate:"required"`
	Black PlayerConfig `json:"black" validate:"required"`
}

type MoveRequest struct {
	From string `json:"from" validate:"required,len=2"`
	To   string `json:"to" validate:"required,len=2"`
}

// Response types

type GameResponse struct {
	GameID   string          `json:"gameId"`
	Turn     string          `json:"turn"`  // "w" or "b"
	State    string          `json:"state"` // "awaiting_move", "ended", etc
	Ply      int             `json:"ply"`
	Outcome  OutcomeInfo     `json:"outcome"`
	Moves    []MoveInfo      `json:"moves"`
	Pieces   []PieceInfo     `json:"pieces"`
	Players  PlayersResponse `json:"players"`
	LastMove *MoveInfo       `json:"lastMove,omitempty"`
}

type MoveInfo struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	PlayerColor string    `json:"playerColor"`
	Eliminated  NatureSet `json:"eliminated"`
}

// PieceInfo is one entry of the public view.
type PieceInfo struct {
	Color   string    `json:"color"`
	Slot    int       `json:"slot"`
	Square  string    `json:"square,omitempty"`
	Natures NatureSet `json:"natures"`
	Dead    bool      `json:"dead,omitempty"`
}

type OutcomeInfo struct {
	Kind  string `json:"kind"`
	Loser string `json:"loser,omitempty"`
}

type LegalMovesResponse struct {
	Moves []MovePair `json:"moves"`
}

type MovePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type NaturesResponse struct {
	Square  string    `json:"square"`
	Natures NatureSet `json:"natures"`
}

type BoardResponse struct {
	FEN   string `json:"fen"`   // Advisory guess position
	Mode  string `json:"mode"`  // "ids", "guess" or "natures"
	Board string `json:"board"` // ASCII representation
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"` // Illegal move tag, e.g. "blocked"
	Details string `json:"details,omitempty"`
}

func NewOutcomeInfo(o Outcome) OutcomeInfo {
	info := OutcomeInfo{Kind: o.Kind.String()}
	if o.Kind == Checkmate {
		info.Loser = o.Loser.String()
	}
	return info
}
