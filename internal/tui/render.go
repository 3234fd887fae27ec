package tui

import (
	"os"
	"strings"
	"unicode/utf8"
)

// Styles decides whether rendering emits ANSI codes. The zero value is
// plain text.
type Styles struct {
	color bool
}

// NewStyles picks styling for the given output: colored only when out is
// an interactive terminal and NO_COLOR is unset.
func NewStyles(out *os.File) Styles {
	return Styles{color: IsTerminal(out) && os.Getenv("NO_COLOR") == ""}
}

// PlainStyles renders without any ANSI codes.
func PlainStyles() Styles { return Styles{} }

// ColorStyles always renders ANSI codes, regardless of the output.
func ColorStyles() Styles { return Styles{color: true} }

// Apply wraps s in the given ANSI codes when styling is on.
func (st Styles) Apply(s string, codes ...string) string {
	if !st.color || len(codes) == 0 {
		return s
	}
	return strings.Join(codes, "") + s + Reset
}

// FormatStatus renders a workflow status word in its color.
func (st Styles) FormatStatus(status string) string {
	color := StatusColor(status)
	if color == "" {
		return status
	}
	return st.Apply(status, color, Bold)
}

// StatusColor returns the color code for a workflow status.
func StatusColor(status string) string {
	switch strings.ToLower(status) {
	case "pending":
		return FgCyan
	case "running":
		return FgGreen
	case "complete":
		return FgBrightGreen
	case "failed":
		return FgRed
	case "timed_out":
		return FgYellow
	default:
		return ""
	}
}

// Box drawing characters (Unicode)
const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
)

// BoxWithContent draws a box containing the given content lines.
// Each line is padded/truncated to fit within the box.
func BoxWithContent(width int, content []string) []string {
	if width < 4 {
		return nil
	}

	innerWidth := width - 4 // Account for borders and padding
	height := len(content) + 2

	lines := make([]string, height)
	lines[0] = BoxTopLeft + strings.Repeat(BoxHorizontal, width-2) + BoxTopRight
	for i, line := range content {
		lines[i+1] = BoxVertical + " " + PadOrTruncate(line, innerWidth) + " " + BoxVertical
	}
	lines[height-1] = BoxBottomLeft + strings.Repeat(BoxHorizontal, width-2) + BoxBottomRight

	return lines
}

// PadOrTruncate pads or truncates a string to exactly width characters.
// Uses rune count for proper Unicode handling.
func PadOrTruncate(s string, width int) string {
	if width <= 0 {
		return ""
	}

	runeLen := utf8.RuneCountInString(s)

	if runeLen == width {
		return s
	}

	if runeLen < width {
		return s + strings.Repeat(" ", width-runeLen)
	}

	// Truncate, preserving rune boundaries
	runes := []rune(s)
	if width >= 3 {
		return string(runes[:width-3]) + "..."
	}
	return string(runes[:width])
}

// Truncate truncates a string to max width, adding ellipsis if needed.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= width {
		return s
	}

	if width >= 3 {
		return string(runes[:width-3]) + "..."
	}
	return string(runes[:width])
}

// WrapText wraps a single paragraph to fit within the given width.
// Returns a slice of lines.
func WrapText(text string, width int) []string {
	if width <= 0 {
		return nil
	}

	var lines []string
	words := strings.Fields(text)

	if len(words) == 0 {
		return lines
	}

	currentLine := words[0]

	for _, word := range words[1:] {
		if utf8.RuneCountInString(currentLine)+1+utf8.RuneCountInString(word) <= width {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}

	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

// WrapBlock wraps multi-paragraph text, preserving blank lines between
// paragraphs.
func WrapBlock(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		if strings.TrimSpace(para) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, WrapText(para, width)...)
	}

	// Trim trailing blanks left by a final newline.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
