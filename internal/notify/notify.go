// Package notify delivers workflow-terminal notifications: a bell for the
// foreground terminal, desktop notifications when backgrounded, and an
// optional webhook for remote alerting.
package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Notification is one alert about a finished workflow.
type Notification struct {
	Title      string
	Body       string
	WorkflowID string
	Reason     string
}

// Notifier sends notifications.
type Notifier interface {
	Send(n Notification) error
	Name() string
}

// Bell rings the terminal bell. It alerts only when the terminal is in the
// foreground; pair it with Desktop through Multi for backgrounded runs.
type Bell struct {
	out io.Writer
}

// NewBell creates a Bell writing to out, defaulting to stdout.
func NewBell(out io.Writer) *Bell {
	if out == nil {
		out = os.Stdout
	}
	return &Bell{out: out}
}

// Send writes the bell character.
func (b *Bell) Send(Notification) error {
	_, err := fmt.Fprint(b.out, "\a")
	return err
}

// Name returns the name of this notifier.
func (b *Bell) Name() string { return "bell" }

// NewDesktop returns the platform's desktop notification sender. Platforms
// without one get a no-op.
func NewDesktop() Notifier {
	return newPlatformNotifier()
}

// Multi fans a notification out to several notifiers. Every notifier is
// attempted; the first error wins.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a Multi from the given notifiers.
func NewMulti(ns ...Notifier) *Multi {
	return &Multi{notifiers: ns}
}

// Send dispatches to every registered notifier.
func (m *Multi) Send(n Notification) error {
	var firstErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", notifier.Name(), err)
		}
	}
	return firstErr
}

// Name returns the combined name of the wrapped notifiers.
func (m *Multi) Name() string {
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}
