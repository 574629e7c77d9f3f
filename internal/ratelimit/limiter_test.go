package ratelimit

import (
	"testing"
	"time"
)

// newTestLimiter returns a limiter with a controllable clock.
func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	clock := start
	l := NewLimiter()
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestAllow_WithinLimit(t *testing.T) {
	rule := Rule{Name: "test", Limit: 3, Window: time.Second}
	l, _ := newTestLimiter(time.Unix(1000, 0))

	for i := 1; i <= 3; i++ {
		if !l.Allow(rule, "u1") {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if l.Allow(rule, "u1") {
		t.Fatal("call 4 should be denied")
	}
}

func TestAllow_WindowReset(t *testing.T) {
	rule := Rule{Name: "test", Limit: 3, Window: time.Second}
	l, clock := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 4; i++ {
		l.Allow(rule, "u1")
	}

	// Advance past the window: the counter resets.
	*clock = clock.Add(1100 * time.Millisecond)
	if !l.Allow(rule, "u1") {
		t.Fatal("call after window elapsed should be allowed")
	}
}

func TestAllow_SubjectsIndependent(t *testing.T) {
	rule := Rule{Name: "test", Limit: 1, Window: time.Second}
	l, _ := newTestLimiter(time.Unix(1000, 0))

	if !l.Allow(rule, "u1") {
		t.Fatal("u1 first call should be allowed")
	}
	if !l.Allow(rule, "u2") {
		t.Fatal("u2 first call should be allowed")
	}
	if l.Allow(rule, "u1") {
		t.Fatal("u1 second call should be denied")
	}
}

func TestAllow_BucketsIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	// Exhaust the match bucket; the message bucket is unaffected.
	for i := 0; i < RuleMatch.Limit; i++ {
		if !l.Allow(RuleMatch, "u1") {
			t.Fatalf("match call %d should be allowed", i+1)
		}
	}
	if l.Allow(RuleMatch, "u1") {
		t.Fatal("match bucket should be exhausted")
	}
	if !l.Allow(RuleMessage, "u1") {
		t.Fatal("message bucket should be unaffected by match bucket")
	}
}

func TestForget(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	l.Allow(RuleMessage, "u1")
	l.Allow(RuleMatch, "u1")
	l.Allow(RuleMessage, "u2")

	l.Forget("u1")

	if got := l.Size(); got != 1 {
		t.Errorf("Size() after Forget = %d, want 1", got)
	}
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	rule := Rule{Name: "test", Limit: 5, Window: time.Second}
	l, clock := newTestLimiter(time.Unix(1000, 0))

	l.Allow(rule, "old")
	*clock = clock.Add(500 * time.Millisecond)
	l.Allow(rule, "fresh")

	*clock = clock.Add(600 * time.Millisecond) // "old" expired, "fresh" not

	if n := l.Sweep(); n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if got := l.Size(); got != 1 {
		t.Errorf("Size() after sweep = %d, want 1", got)
	}
}

func TestSweep_DoesNotChangeContract(t *testing.T) {
	rule := Rule{Name: "test", Limit: 2, Window: time.Second}
	l, clock := newTestLimiter(time.Unix(1000, 0))

	l.Allow(rule, "u1")
	l.Allow(rule, "u1")

	*clock = clock.Add(2 * time.Second)
	l.Sweep()

	// A fresh window after expiry behaves identically with or without sweep.
	if !l.Allow(rule, "u1") {
		t.Fatal("call in fresh window should be allowed after sweep")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	rule := Rule{Name: "test", Limit: 100, Window: time.Minute}
	l := NewLimiter()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				l.Allow(rule, "shared")
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	// 400 calls against limit 100: the final call must be denied.
	if l.Allow(rule, "shared") {
		t.Fatal("call beyond limit should be denied")
	}
}
