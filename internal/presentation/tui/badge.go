package tui

import (
	"io"

	"github.com/muesli/termenv"
)

var badgeColors = map[string]string{
	"AUTO_RUN":      "#22c55e",
	"ASK_COMMANDER": "#f59e0b",
	"ASK":           "#f59e0b",
	"BLOCK":         "#ef4444",
}

// Badge renders a decision as a coloured label for w's color profile.
// Without color support it is the bracketed decision.
func Badge(w io.Writer, decision string) string {
	out := termenv.NewOutput(w)
	s := out.String(" " + decision + " ")
	if c, ok := badgeColors[decision]; ok && out.Profile != termenv.Ascii {
		return s.Background(out.Color(c)).Foreground(out.Color("#000000")).Bold().String()
	}
	return "[" + decision + "]"
}
