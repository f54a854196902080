package core

// Error codes
const (
	ErrCodeGameNotFound      = "GAME_NOT_FOUND"
	ErrCodeInvalidMove       = "INVALID_MOVE"
	ErrCodeNotHumanTurn      = "NOT_HUMAN_TURN"
	ErrCodeGameOver          = "GAME_OVER"
	ErrCodeGameCorrupt       = "GAME_CORRUPT"
	ErrCodeInconclusive      = "SOLVER_INCONCLUSIVE"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidContent    = "INVALID_CONTENT_TYPE"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeResourceLimit     = "RESOURCE_LIMIT"
)
