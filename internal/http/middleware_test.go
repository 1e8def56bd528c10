package http

import (
	"testing"
	"time"
)

func TestLimitersEvictIdleUsers(t *testing.T) {
	l := newLimiters(1, 1)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	first := l.get("user_a")
	if !first.Allow() {
		t.Fatal("first request denied")
	}
	l.get("user_b")
	if got := len(l.byUser); got != 2 {
		t.Fatalf("tracked users = %d, want 2", got)
	}

	now = now.Add(limiterIdle / 2)
	l.get("user_b")
	if l.get("user_a") != first {
		t.Error("active user lost its bucket")
	}

	now = now.Add(limiterIdle)
	l.get("user_c")
	if got := len(l.byUser); got != 1 {
		t.Errorf("tracked users after idle window = %d, want 1", got)
	}
	if _, ok := l.byUser["user_a"]; ok {
		t.Error("idle user_a still tracked")
	}
}

func TestLimitersUnlimited(t *testing.T) {
	l := newLimiters(0, 0)
	for i := 0; i < 100; i++ {
		if !l.get("user_a").Allow() {
			t.Fatalf("request %d denied with no limit", i)
		}
	}
}
