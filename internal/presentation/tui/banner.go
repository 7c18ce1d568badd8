package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the quill ASCII art banner to w using profile p.
// The Ascii profile prints it uncolored.
func PrintBanner(w io.Writer, p termenv.Profile) {
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct {
		text  string
		color string
	}{
		{"   ____        _ _ _ ", "#818cf8"},
		{"  / __ \\__  __(_) | |", "#a78bfa"},
		{" / / / / / / / / | |", "#c084fc"},
		{"/ /_/ / /_/ / / | |", "#e879f9"},
		{"\\___\\_\\__,_/_/_|_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
