//go:build linux

package notify

import (
	"os/exec"

	"github.com/syndelabs/synde/internal/logging"
)

type linuxNotifier struct{}

func newPlatformNotifier() Notifier {
	return &linuxNotifier{}
}

func (l *linuxNotifier) Send(n Notification) error {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		logging.Component("notify").Debug("notify-send not found, skipping desktop notification")
		return nil
	}
	return exec.Command(path, n.Title, n.Body).Run()
}

func (l *linuxNotifier) Name() string { return "desktop" }
