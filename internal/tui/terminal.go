package tui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI escape sequences
const (
	// Screen control
	ClearScreen = "\033[2J"   // Clear entire screen
	ClearLine   = "\033[K"    // Clear from cursor to end of line
	CursorHome  = "\033[H"    // Move cursor to home position (1,1)
	CursorHide  = "\033[?25l" // Hide cursor
	CursorShow  = "\033[?25h" // Show cursor

	// Text attributes
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	Underline = "\033[4m"

	// Foreground colors
	FgBlack   = "\033[30m"
	FgRed     = "\033[31m"
	FgGreen   = "\033[32m"
	FgYellow  = "\033[33m"
	FgBlue    = "\033[34m"
	FgMagenta = "\033[35m"
	FgCyan    = "\033[36m"
	FgWhite   = "\033[37m"

	// Bright foreground colors
	FgBrightBlack   = "\033[90m"
	FgBrightRed     = "\033[91m"
	FgBrightGreen   = "\033[92m"
	FgBrightYellow  = "\033[93m"
	FgBrightBlue    = "\033[94m"
	FgBrightMagenta = "\033[95m"
	FgBrightCyan    = "\033[96m"
	FgBrightWhite   = "\033[97m"
)

// CursorUp returns an ANSI escape sequence to move the cursor up n lines.
func CursorUp(n int) string {
	return fmt.Sprintf("\033[%dA", n)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width for f, or fallback when f is not a
// terminal or its size cannot be read.
func Width(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// Repainter redraws a block of lines in place, clearing leftovers from the
// previous, possibly taller, frame. Use only on interactive terminals.
type Repainter struct {
	out       io.Writer
	prevLines int
}

func NewRepainter(out io.Writer) *Repainter {
	return &Repainter{out: out}
}

// Paint replaces the previously painted block with lines.
func (r *Repainter) Paint(lines []string) {
	if r.prevLines > 0 {
		fmt.Fprint(r.out, CursorUp(r.prevLines))
	}
	for _, line := range lines {
		fmt.Fprint(r.out, ClearLine)
		fmt.Fprintln(r.out, line)
	}
	if extra := r.prevLines - len(lines); extra > 0 {
		for i := 0; i < extra; i++ {
			fmt.Fprint(r.out, ClearLine, "\n")
		}
		fmt.Fprint(r.out, CursorUp(extra))
	}
	r.prevLines = len(lines)
}

// Painted reports how many lines the last frame drew.
func (r *Repainter) Painted() int {
	return r.prevLines
}
