package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/stream"
)

// updateBuffer is the snapshot channel capacity. When a consumer falls this
// far behind, older snapshots are evicted so the newest state wins; the
// runner never blocks on a slow reader.
const updateBuffer = 16

// Transport opens one ordered event stream per workflow. *stream.Client
// satisfies it; tests substitute scripted fakes.
type Transport interface {
	Open(ctx context.Context, conversationID, workflowID string) (stream.Conn, error)
}

// Subscription is the live binding between one workflow and its event
// stream. A single runner goroutine owns the connection, the retry timer,
// and the state machine; every protocol event and timer callback for the
// subscription executes there, in arrival order.
type Subscription struct {
	workflowID     string
	conversationID string

	transport   Transport
	backoff     Backoff
	idleTimeout time.Duration
	timer       *retryTimer
	machine     *machine
	logger      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	updates chan Snapshot
	done    chan struct{}

	// onExit runs on the runner goroutine after the loop ends, before
	// updates and done close. The registry uses it to drop its entry and
	// fire notifications.
	onExit func(final Snapshot)

	mu   sync.Mutex
	last Snapshot
}

type subscriptionParams struct {
	conversationID string
	workflowID     string
	transport      Transport
	backoff        Backoff
	idleTimeout    time.Duration
	logger         *logging.Logger
	onExit         func(Snapshot)
}

func newSubscription(ctx context.Context, p subscriptionParams) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	logger := p.logger
	if logger == nil {
		logger = logging.Component("subscription")
	}
	logger = logger.With("workflow", p.workflowID)

	s := &Subscription{
		workflowID:     p.workflowID,
		conversationID: p.conversationID,
		transport:      p.transport,
		backoff:        p.backoff,
		idleTimeout:    p.idleTimeout,
		timer:          newRetryTimer(),
		machine:        newMachine(p.conversationID, p.workflowID, logger),
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		updates:        make(chan Snapshot, updateBuffer),
		done:           make(chan struct{}),
		onExit:         p.onExit,
	}
	s.last = s.machine.snapshot()
	return s
}

// WorkflowID returns the backend-assigned workflow identifier.
func (s *Subscription) WorkflowID() string {
	return s.workflowID
}

// ConversationID returns the owning conversation.
func (s *Subscription) ConversationID() string {
	return s.conversationID
}

// Updates delivers state snapshots in the order they were produced. The
// channel closes when the subscription ends; the final snapshot is always
// delivered before the close.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Done closes when the runner goroutine has fully stopped and the transport
// is released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the most recently published state.
func (s *Subscription) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Wait blocks until the subscription ends or ctx expires, returning the
// last known snapshot either way.
func (s *Subscription) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// stop requests cancellation. The runner tears down the transport and timer
// on its way out; callers wait on Done for full release.
func (s *Subscription) stop() {
	s.cancel()
}

func (s *Subscription) storeLast(snap Snapshot) {
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
}

// publish records and delivers a fresh snapshot. If the updates buffer is
// full, the oldest pending snapshot is evicted: consumers always converge
// on the newest state, and the runner never blocks.
func (s *Subscription) publish() {
	snap := s.machine.snapshot()
	s.storeLast(snap)
	for {
		select {
		case s.updates <- snap:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// run is the subscription's single logical thread. It opens the transport,
// pumps events into the state machine, and sleeps on the retry timer
// between attempts, until a terminal status or cancellation.
func (s *Subscription) run() {
	defer func() {
		s.timer.Cancel()
		final := s.machine.snapshot()
		s.storeLast(final)
		if s.onExit != nil {
			s.onExit(final)
		}
		close(s.updates)
		close(s.done)
	}()

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn, err := s.transport.Open(s.ctx, s.conversationID, s.workflowID)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("stream open failed", "error", err)
			if !s.retryOrFail() {
				return
			}
			continue
		}

		s.consume(conn)
		conn.Close()

		if s.machine.terminal() {
			s.logger.Info("subscription finished", "status", s.machine.snapshot().Status)
			return
		}
		if s.ctx.Err() != nil {
			return
		}

		// The stream ended without a terminal event. A clean server EOF and
		// a broken connection are both unexpected closes here.
		if err := conn.Err(); err != nil {
			s.logger.Warn("stream broke", "error", err)
		} else {
			s.logger.Warn("stream closed without terminal event")
		}
		if !s.retryOrFail() {
			return
		}
	}
}

// consume applies events from one connection until it ends, the machine
// goes terminal, or the subscription is cancelled. Events already in flight
// when cancellation is requested are discarded, never applied.
func (s *Subscription) consume(conn stream.Conn) {
	var idle *time.Timer
	var idleC <-chan time.Time
	if s.idleTimeout > 0 {
		idle = time.NewTimer(s.idleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-idleC:
			// No event, not even a heartbeat, for the whole window: the
			// connection is presumed dead and reopened through the policy.
			s.logger.Warn("stream idle too long", "timeout", s.idleTimeout)
			return

		case ev, ok := <-conn.Events():
			if !ok {
				return
			}
			if s.ctx.Err() != nil {
				return
			}
			if idle != nil {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(s.idleTimeout)
			}
			if s.machine.apply(ev) {
				s.publish()
			}
			if s.machine.terminal() {
				return
			}
		}
	}
}

// retryOrFail records one failed attempt and sleeps on the retry timer. It
// reports true when the runner should reopen, false when the policy is
// exhausted or the subscription was cancelled. On exhaustion the machine is
// moved to failed with a connectivity-specific message.
func (s *Subscription) retryOrFail() bool {
	if s.ctx.Err() != nil {
		return false
	}

	attempt := s.machine.noteRetry()
	s.publish()

	if s.backoff.Exhausted(attempt) {
		s.logger.Warn("reconnect attempts exhausted", "attempts", attempt)
		s.machine.failConnectivity(attempt)
		s.publish()
		return false
	}

	delay := s.backoff.Delay(attempt)
	s.logger.Debug("retry scheduled", "attempt", attempt, "delay", delay)
	s.timer.Schedule(delay)

	select {
	case <-s.ctx.Done():
		s.timer.Cancel()
		return false
	case <-s.timer.C():
		return true
	}
}
