package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/syndelabs/synde/internal/logging"
)

// Auth throttling applied by withAuth when a token is configured. The mock
// enforces the same limits as the hosted gateway so clients can exercise
// their 429 handling: a sliding window over auth attempts per client IP,
// plus an escalating block once an IP keeps presenting bad tokens.
const (
	authWindow      = time.Minute
	authMaxAttempts = 20
	authBlockAfter  = 10
	authBlockBase   = 5 * time.Minute
	authBlockMax    = time.Hour
)

// authLimiter tracks authentication attempts per client IP.
type authLimiter struct {
	mu sync.Mutex

	attempts map[string][]time.Time // attempt timestamps inside the window
	failures map[string]int         // consecutive failed attempts
	blocked  map[string]time.Time   // block expiry per IP

	logger *logging.Logger
	clock  func() time.Time
}

func newAuthLimiter(logger *logging.Logger) *authLimiter {
	return &authLimiter{
		attempts: make(map[string][]time.Time),
		failures: make(map[string]int),
		blocked:  make(map[string]time.Time),
		logger:   logger,
		clock:    time.Now,
	}
}

// checkResult says whether an auth attempt may proceed and, when it may
// not, how long the client should wait.
type checkResult struct {
	allowed    bool
	retryAfter time.Duration
	reason     string
}

// check records one attempt for ip and decides whether it may proceed.
func (l *authLimiter) check(ip string) checkResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	if expiry, ok := l.blocked[ip]; ok {
		if now.Before(expiry) {
			return checkResult{
				retryAfter: expiry.Sub(now),
				reason:     "too many failed authentication attempts",
			}
		}
		delete(l.blocked, ip)
	}

	windowStart := now.Add(-authWindow)
	kept := l.attempts[ip][:0]
	for _, ts := range l.attempts[ip] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= authMaxAttempts {
		retry := kept[0].Add(authWindow).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		l.attempts[ip] = kept
		return checkResult{retryAfter: retry, reason: "rate limit exceeded"}
	}

	l.attempts[ip] = append(kept, now)
	return checkResult{allowed: true}
}

// recordFailure counts a rejected token. Enough consecutive failures block
// the IP, and the block doubles for repeat offenders.
func (l *authLimiter) recordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[ip]++
	count := l.failures[ip]
	if count < authBlockAfter {
		return
	}

	doublings := (count - authBlockAfter) / authBlockAfter
	duration := authBlockBase << doublings
	if duration > authBlockMax || duration <= 0 {
		duration = authBlockMax
	}
	l.blocked[ip] = l.clock().Add(duration)
	l.logger.Warn("client blocked after repeated auth failures",
		"ip", ip, "failures", count, "block", duration)
}

// recordSuccess clears the failure history once a valid token shows up.
func (l *authLimiter) recordSuccess(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, ip)
	delete(l.blocked, ip)
}

// retryAfterSeconds rounds a wait up to whole seconds for the Retry-After
// header.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientIP resolves the caller's address, honoring the proxy headers the
// hosted gateway forwards.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
