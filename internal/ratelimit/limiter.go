// Package ratelimit provides in-process fixed-window rate limiting for the
// chat gateway. Each action class (message sending, match requests) has its
// own rule, and counters are kept per (rule, subject) pair. A fixed window
// accepts bursts at window boundaries; that approximation is deliberate.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"
)

// Rule defines a rate limiting policy: a bucket name, the maximum number of
// actions allowed in the window, and the window duration.
type Rule struct {
	Name   string        // bucket key prefix (e.g., "msg", "match")
	Limit  int           // max count in the window
	Window time.Duration // time window
}

// Standard rules for the chat gateway.
var (
	// RuleMessage allows 25 chat messages per 10 seconds per user.
	RuleMessage = Rule{Name: "msg", Limit: 25, Window: 10 * time.Second}

	// RuleMatch allows 10 match requests per 20 seconds per user.
	RuleMatch = Rule{Name: "match", Limit: 10, Window: 20 * time.Second}
)

// window is one fixed-window counter.
type window struct {
	count int
	reset time.Time
}

// Limiter tracks fixed-window counters per (rule, subject). It is safe for
// concurrent use from many connection handlers.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*window

	// now is swappable for tests.
	now func() time.Time
}

// NewLimiter creates an empty Limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records one action by subject under the given rule and reports
// whether the action is within the limit. When the window has elapsed the
// counter resets and a new window starts at the current time.
func (l *Limiter) Allow(rule Rule, subject string) bool {
	key := rule.Name + ":" + subject
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.buckets[key]
	if !ok {
		w = &window{reset: now.Add(rule.Window)}
		l.buckets[key] = w
	}
	if now.After(w.reset) {
		w.count = 0
		w.reset = now.Add(rule.Window)
	}
	w.count++
	return w.count <= rule.Limit
}

// Forget drops all counters for a subject. Called on disconnect so the map
// does not grow with every user ever seen.
func (l *Limiter) Forget(subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rule := range []Rule{RuleMessage, RuleMatch} {
		delete(l.buckets, rule.Name+":"+subject)
	}
}

// Sweep removes counters whose window has already elapsed and returns the
// number of entries removed. An expired counter is indistinguishable from a
// missing one, so removal does not change the allow/deny contract.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.buckets {
		if now.After(w.reset) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// StartSweep runs Sweep on the given interval until ctx is cancelled.
func (l *Limiter) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					log.Printf("[ratelimit] sweep removed %d expired buckets", n)
				}
			}
		}
	}()
}

// Size returns the current number of tracked counters.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
