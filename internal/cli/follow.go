package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syndelabs/synde/internal/api"
	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/state"
	"github.com/syndelabs/synde/internal/tui"
	"github.com/syndelabs/synde/internal/workflow"
)

// notifySuccessFlag also notifies on successful completion. Registered by
// every command that follows a workflow.
var notifySuccessFlag bool

// spinnerInterval paces repaints between snapshots so the spinner keeps
// moving while the stream is quiet.
const spinnerInterval = 120 * time.Millisecond

// follower drives the live view for one subscription. On an interactive
// terminal it repaints the workflow view in place; otherwise it appends
// plain progress lines, suitable for pipes and logs.
type follower struct {
	out         io.Writer
	interactive bool
	width       int
	view        *tui.WorkflowView
	repaint     *tui.Repainter

	msg    *api.Message
	store  *state.Store
	prompt string

	startedAt   time.Time
	printedLogs int
	lastHeader  string
	lastNotice  string

	logger *logging.Logger
}

// followWorkflow renders the subscription's progress until it ends and
// returns the final snapshot. Ctrl-C detaches: the subscription is closed,
// the workflow keeps running server side, and detached is true.
func followWorkflow(reg *workflow.Registry, sub *workflow.Subscription, msg *api.Message, store *state.Store, prompt string) (snap workflow.Snapshot, detached bool) {
	out := os.Stdout
	f := &follower{
		out:         out,
		interactive: tui.IsTerminal(out),
		width:       tui.Width(out, 80),
		view:        tui.NewWorkflowView(tui.NewStyles(out)),
		repaint:     tui.NewRepainter(out),
		msg:         msg,
		store:       store,
		prompt:      prompt,
		startedAt:   time.Now(),
		logger:      logging.Component("cli"),
	}

	// A resumed workflow keeps its original start time and prompt.
	if store != nil {
		if existing, err := store.Get(sub.WorkflowID()); err == nil {
			f.startedAt = existing.StartedAt
			if f.prompt == "" {
				f.prompt = existing.Prompt
			}
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var tick <-chan time.Time
	if f.interactive {
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		tick = ticker.C

		fmt.Fprint(out, tui.CursorHide)
		defer fmt.Fprint(out, tui.CursorShow)
	}

	snap = sub.Snapshot()
	f.record(snap)
	f.paint(snap)

	for {
		select {
		case <-sigCh:
			reg.Unsubscribe(sub.WorkflowID())
			fmt.Fprintln(f.out)
			fmt.Fprintf(f.out, "Detached. Pick the workflow back up with: synde watch %s --conversation %s\n",
				sub.WorkflowID(), sub.ConversationID())
			return sub.Snapshot(), true

		case <-tick:
			f.paint(snap)

		case s, ok := <-sub.Updates():
			if !ok {
				snap = sub.Snapshot()
				f.record(snap)
				f.paintFinal(snap)
				return snap, false
			}
			snap = s
			f.record(snap)
			f.paint(snap)
		}
	}
}

// record mirrors the snapshot into the session store; terminal entries are
// pruned by the store itself.
func (f *follower) record(snap workflow.Snapshot) {
	if f.store == nil {
		return
	}
	err := f.store.Upsert(state.Session{
		WorkflowID:     snap.WorkflowID,
		ConversationID: snap.ConversationID,
		Status:         snap.Status,
		Prompt:         f.prompt,
		StartedAt:      f.startedAt,
		UpdatedAt:      time.Now(),
	})
	if err != nil {
		f.logger.Warn("failed to record session", "error", err)
	}
}

func (f *follower) paint(snap workflow.Snapshot) {
	model := workflow.Project(f.msg, snap)
	if f.interactive {
		f.repaint.Paint(f.view.Render(model, f.width))
		return
	}
	f.printPlain(model)
}

// paintFinal paints the terminal state. The interactive view shows the
// result body itself; plain mode appends it here.
func (f *follower) paintFinal(snap workflow.Snapshot) {
	model := workflow.Project(f.msg, snap)
	if f.interactive {
		f.repaint.Paint(f.view.Render(model, f.width))
		return
	}

	f.printPlain(model)
	switch {
	case model.TerminalError != "":
		fmt.Fprintln(f.out)
		fmt.Fprintln(f.out, model.TerminalError)
	case model.TerminalContent != "":
		fmt.Fprintln(f.out)
		fmt.Fprintln(f.out, model.TerminalContent)
	}
	if model.PDBData != "" {
		fmt.Fprintf(f.out, "Structure model attached (%d bytes)\n", len(model.PDBData))
	}
	if model.ResponseHTML != "" {
		fmt.Fprintln(f.out, "Prediction table attached (HTML)")
	}
}

// printPlain appends whatever is new since the last call: status banner
// changes, transient notices, fresh log lines.
func (f *follower) printPlain(model workflow.RenderModel) {
	if model.HeaderText != f.lastHeader {
		fmt.Fprintln(f.out, model.HeaderText)
		f.lastHeader = model.HeaderText
	}
	if model.Notice != "" && model.Notice != f.lastNotice {
		fmt.Fprintf(f.out, "  (%s)\n", model.Notice)
		f.lastNotice = model.Notice
	}
	for ; f.printedLogs < len(model.LogLines); f.printedLogs++ {
		fmt.Fprintln(f.out, "  "+model.LogLines[f.printedLogs])
	}
}

// exitForStatus maps a terminal workflow status to the process exit code
// contract: 0 complete, 1 failed, 2 timed out.
func exitForStatus(status workflow.Status) error {
	switch status {
	case workflow.StatusFailed:
		return &ExitError{Code: 1, Err: fmt.Errorf("workflow failed")}
	case workflow.StatusTimedOut:
		return &ExitError{Code: 2, Err: fmt.Errorf("workflow timed out")}
	}
	return nil
}

// saveStructure writes the result's PDB payload to path.
func saveStructure(snap workflow.Snapshot, path string) error {
	if snap.Result == nil || snap.Result.PDBData == "" {
		return fmt.Errorf("workflow result carries no structure data")
	}
	if err := os.WriteFile(path, []byte(snap.Result.PDBData), 0o644); err != nil {
		return fmt.Errorf("failed to write structure file: %w", err)
	}
	fmt.Printf("Structure written to %s\n", path)
	return nil
}
