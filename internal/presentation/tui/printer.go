// Package tui prints run progress for humans.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// PreviewLength is the number of characters of content shown per message.
const PreviewLength = 100

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Profile returns the color profile for f: the detected one on a terminal,
// termenv.Ascii (no colors) otherwise.
func Profile(f *os.File) termenv.Profile {
	if !IsTerminal(f) {
		return termenv.Ascii
	}
	return termenv.NewOutput(f).EnvColorProfile()
}

// Printer writes one progress line per streamed message.
type Printer struct {
	out     io.Writer
	profile termenv.Profile
}

// NewPrinter creates a Printer. Use termenv.Ascii for plain output.
func NewPrinter(out io.Writer, profile termenv.Profile) *Printer {
	return &Printer{out: out, profile: profile}
}

// Message prints the role and a content preview of m, then a tool notice when
// m requests tools. Messages without content print only the notice.
func (p *Printer) Message(m domain.Message) {
	if m.Content != "" {
		role := p.profile.String(strings.ToUpper(string(m.Role))).Bold()
		if m.IsError {
			role = role.Foreground(p.profile.Color("#fb7185"))
		} else {
			role = role.Foreground(p.profile.Color("#818cf8"))
		}
		fmt.Fprintf(p.out, "\n%s: %s...\n", role, Preview(m.Content, PreviewLength))
	}
	if m.HasToolCalls() {
		notice := p.profile.String("CALLING TOOL:").Foreground(p.profile.Color("#e879f9"))
		fmt.Fprintf(p.out, "%s %s\n", notice, m.ToolCalls[0].Name)
	}
}

// Failure prints the final failure notice naming the role of the last
// successfully appended message.
func (p *Printer) Failure(last domain.MessageLog, err error) {
	role := "no"
	if m, ok := last.Last(); ok {
		role = strings.ToUpper(string(m.Role))
	}
	notice := p.profile.String("Run failed").Bold().Foreground(p.profile.Color("#fb7185"))
	fmt.Fprintf(p.out, "\n%s after %s message: %v\n", notice, role, err)
}

// System prints a standardized system message.
func (p *Printer) System(format string, args ...any) {
	fmt.Fprintf(p.out, ">>> %s\n", fmt.Sprintf(format, args...))
}

// Preview returns the first n characters of s.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
