package tui

import (
	"fmt"

	"github.com/syndelabs/synde/internal/workflow"
)

// spinnerFrames cycle one step per repaint while a workflow is in flight.
var spinnerFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner returns the spinner frame for the given tick.
func Spinner(tick int) string {
	if tick < 0 {
		tick = -tick
	}
	return spinnerFrames[tick%len(spinnerFrames)]
}

// logTailShown is how many log lines the live view keeps on screen.
const logTailShown = 6

// WorkflowView renders successive render models for one workflow as
// terminal lines. The only state it keeps is the spinner phase; everything
// shown comes from the model.
type WorkflowView struct {
	styles Styles
	frame  int
}

func NewWorkflowView(styles Styles) *WorkflowView {
	return &WorkflowView{styles: styles}
}

// Render turns one model into terminal lines: a header, the stage detail,
// a boxed log tail while running, then the result body or the labeled
// error once the workflow ends.
func (v *WorkflowView) Render(model workflow.RenderModel, width int) []string {
	if width < 20 {
		width = 20
	}

	// The projector clears the detail line on terminal snapshots, so a
	// non-empty detail means the workflow is still in flight.
	working := model.DetailText != ""

	var lines []string

	switch {
	case working:
		header := v.styles.Apply(Spinner(v.frame), FgCyan) + " " +
			v.styles.Apply(Truncate(model.HeaderText, width-2), Bold)
		v.frame++
		lines = append(lines, header)
	case model.TerminalError != "":
		lines = append(lines, v.styles.Apply("✗ "+Truncate(model.HeaderText, width-2), Bold, FgRed))
	default:
		lines = append(lines, v.styles.Apply("✓ "+Truncate(model.HeaderText, width-2), Bold, FgBrightGreen))
	}

	if model.DetailText != "" {
		lines = append(lines, "  "+v.styles.Apply(Truncate(model.DetailText, width-2), Dim))
	}
	if model.Notice != "" {
		lines = append(lines, "  "+v.styles.Apply(Truncate("⚠ "+model.Notice, width-2), FgYellow))
	}

	if working && len(model.LogLines) > 0 {
		tail := model.LogLines
		if len(tail) > logTailShown {
			tail = tail[len(tail)-logTailShown:]
		}
		lines = append(lines, BoxWithContent(width, tail)...)
	}

	switch {
	case model.TerminalError != "":
		lines = append(lines, "")
		for _, l := range WrapBlock(model.TerminalError, width) {
			lines = append(lines, v.styles.Apply(l, FgRed))
		}
	case model.TerminalContent != "":
		lines = append(lines, "")
		lines = append(lines, WrapBlock(model.TerminalContent, width)...)
	}

	if !working {
		if model.PDBData != "" {
			lines = append(lines, v.styles.Apply(
				fmt.Sprintf("Structure model attached (%d bytes)", len(model.PDBData)), Dim))
		}
		if model.ResponseHTML != "" {
			lines = append(lines, v.styles.Apply("Prediction table attached (HTML)", Dim))
		}
	}

	return lines
}
