//go:build !darwin && !linux

package notify

// noopNotifier stands in on platforms without desktop notifications.
type noopNotifier struct{}

func newPlatformNotifier() Notifier {
	return &noopNotifier{}
}

func (noopNotifier) Send(Notification) error { return nil }
func (noopNotifier) Name() string            { return "noop" }
