package display

import (
	"fmt"
	"io"
	"strings"
)

// RenderBoard colours a server ASCII board: white pieces blue, black pieces
// red, coordinates cyan. Works for every render mode.
func RenderBoard(w io.Writer, asciiBoard string) {
	lines := strings.Split(asciiBoard, "\n")
	last := len(lines) - 1

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		isFileLine := i == 0 || i == last

		// Cells are space separated tokens; keep the separators as they are.
		var sb strings.Builder
		for j, tok := range strings.Split(line, " ") {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(colorToken(tok, isFileLine))
		}
		fmt.Fprintln(w, sb.String())
	}
}

func colorToken(tok string, isFileLine bool) string {
	if tok == "" {
		return tok
	}
	c := tok[0]
	switch {
	case isFileLine, len(tok) == 1 && c >= '1' && c <= '8':
		return coordinate + tok + Reset
	case tok == "." || strings.HasPrefix(tok, "--"):
		return tok
	case c == 'W' || c == 'w' || (len(tok) == 1 && c >= 'A' && c <= 'Z'):
		return whiteSide + tok + Reset
	default:
		return blackSide + tok + Reset
	}
}
