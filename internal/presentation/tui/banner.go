package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the chancellor banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text, color string
	}{
		{`   ___ _                            _ _`, "#818cf8"},
		{`  / __| |_  __ _ _ _  __ ___ _ _ | | |___ _ _`, "#a78bfa"},
		{` | (__| ' \/ _' | ' \/ _/ -_) ' \| | / _ \ '_|`, "#c084fc"},
		{`  \___|_||_\__,_|_||_\__\___|_||_|_|_\___/_|`, "#e879f9"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
