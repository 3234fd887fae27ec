package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/notify"
)

// ErrAlreadySubscribed is returned by Subscribe while a live subscription
// for the same workflow exists. The caller must unsubscribe first.
var ErrAlreadySubscribed = errors.New("already subscribed")

// Registry owns the live subscriptions of one client session and enforces
// at most one open stream per workflow. It is an explicitly owned object,
// passed to whoever needs it, never a package singleton.
type Registry struct {
	transport     Transport
	backoff       Backoff
	idleTimeout   time.Duration
	notifier      notify.Notifier
	notifySuccess bool
	logger        *logging.Logger

	mu   sync.Mutex
	subs map[string]*Subscription
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBackoff replaces the default reconnection policy.
func WithBackoff(b Backoff) RegistryOption {
	return func(r *Registry) {
		r.backoff = b
	}
}

// WithIdleTimeout sets how long a connection may stay silent before it is
// presumed dead and reopened. Zero disables the watchdog.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// WithNotifier sets the notifier invoked when a subscription ends in a
// terminal failure.
func WithNotifier(n notify.Notifier) RegistryOption {
	return func(r *Registry) {
		r.notifier = n
	}
}

// WithSuccessNotifications also notifies on successful completion.
func WithSuccessNotifications() RegistryOption {
	return func(r *Registry) {
		r.notifySuccess = true
	}
}

// WithRegistryLogger sets the logger used by the registry and its
// subscriptions.
func WithRegistryLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry on top of the given transport.
func NewRegistry(transport Transport, opts ...RegistryOption) *Registry {
	r := &Registry{
		transport: transport,
		backoff:   DefaultBackoff(),
		logger:    logging.Component("registry"),
		subs:      make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe opens a subscription for the workflow and starts its runner.
// It fails with ErrAlreadySubscribed while a live subscription exists.
func (r *Registry) Subscribe(ctx context.Context, conversationID, workflowID string) (*Subscription, error) {
	r.mu.Lock()
	if _, exists := r.subs[workflowID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrAlreadySubscribed)
	}

	sub := newSubscription(ctx, subscriptionParams{
		conversationID: conversationID,
		workflowID:     workflowID,
		transport:      r.transport,
		backoff:        r.backoff,
		idleTimeout:    r.idleTimeout,
		logger:         r.logger,
	})
	sub.onExit = func(final Snapshot) {
		r.handleExit(workflowID, sub, final)
	}
	r.subs[workflowID] = sub
	r.mu.Unlock()

	r.logger.Info("subscribed", "workflow", workflowID, "conversation", conversationID)
	go sub.run()
	return sub, nil
}

// Resume re-opens a subscription for a workflow the client still believes
// is in flight. It is exactly Subscribe: a fresh attempt counter, not a
// reconnect.
func (r *Registry) Resume(ctx context.Context, conversationID, workflowID string) (*Subscription, error) {
	return r.Subscribe(ctx, conversationID, workflowID)
}

// Unsubscribe closes the workflow's transport, cancels any pending retry,
// and discards the subscription. Idempotent. It returns only after the
// runner goroutine has fully stopped, so a Subscribe immediately after
// never races the old connection.
func (r *Registry) Unsubscribe(workflowID string) error {
	r.mu.Lock()
	sub, ok := r.subs[workflowID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	sub.stop()
	<-sub.Done()
	r.logger.Info("unsubscribed", "workflow", workflowID)
	return nil
}

// Get returns the live subscription for a workflow, if any.
func (r *Registry) Get(workflowID string) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[workflowID]
	return sub, ok
}

// Active returns the workflow IDs with live subscriptions, sorted.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// CloseAll unsubscribes every live subscription and waits for their runners
// to stop.
func (r *Registry) CloseAll() {
	for _, id := range r.Active() {
		r.Unsubscribe(id)
	}
}

// handleExit runs on the subscription's runner goroutine as it ends. The
// registry entry is dropped only if it still belongs to this subscription;
// a workflow resubscribed after a terminal exit must not lose its new entry
// to the old runner's teardown.
func (r *Registry) handleExit(workflowID string, sub *Subscription, final Snapshot) {
	r.mu.Lock()
	if cur, ok := r.subs[workflowID]; ok && cur == sub {
		delete(r.subs, workflowID)
	}
	r.mu.Unlock()

	if final.Status.Terminal() {
		r.notifyTerminal(final)
	}
}

func (r *Registry) notifyTerminal(final Snapshot) {
	if r.notifier == nil {
		return
	}

	var n notify.Notification
	switch final.Status {
	case StatusComplete:
		if !r.notifySuccess {
			return
		}
		n = notify.Notification{
			Title:      "Workflow complete",
			Body:       "Your workflow finished successfully",
			WorkflowID: final.WorkflowID,
			Reason:     "complete",
		}
	case StatusFailed:
		n = notify.Notification{
			Title:      "Workflow failed",
			Body:       final.FailureMessage,
			WorkflowID: final.WorkflowID,
			Reason:     final.Failure.String(),
		}
	case StatusTimedOut:
		n = notify.Notification{
			Title:      "Workflow timed out",
			Body:       final.FailureMessage,
			WorkflowID: final.WorkflowID,
			Reason:     final.Failure.String(),
		}
	default:
		return
	}

	if err := r.notifier.Send(n); err != nil {
		r.logger.Warn("notification failed", "notifier", r.notifier.Name(), "error", err)
	}
}
