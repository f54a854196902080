package display

// ANSI SGR sequences used by the client.
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

// Board roles.
const (
	whiteSide  = Blue
	blackSide  = Red
	coordinate = Cyan
)

// Prompt wraps text in the readline prompt colour.
func Prompt(text string) string {
	return Yellow + text + " > " + Reset
}

// ColorForTurn names the side to move ("w" or "b") in its board colour.
func ColorForTurn(turn string) string {
	if turn == "w" {
		return whiteSide + "White" + Reset
	}
	return blackSide + "Black" + Reset
}
