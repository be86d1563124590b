package rest

import (
	"testing"
	"time"
)

func TestIPLimiters_EvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	s := newIPLimiters(1, 1)
	s.now = func() time.Time { return now }

	first := s.get("10.0.0.1")
	s.get("10.0.0.2")
	if got := len(s.limiters); got != 2 {
		t.Fatalf("limiters = %d, want 2", got)
	}

	now = now.Add(limiterIdleTTL / 2)
	if again := s.get("10.0.0.1"); again != first {
		t.Fatalf("active client got a fresh limiter")
	}

	now = now.Add(limiterIdleTTL/2 + limiterSweepInterval)
	s.get("10.0.0.3")
	if _, ok := s.limiters["10.0.0.2"]; ok {
		t.Fatalf("idle client was not evicted")
	}
	if _, ok := s.limiters["10.0.0.1"]; !ok {
		t.Fatalf("recently seen client was evicted")
	}
	if got := len(s.limiters); got != 2 {
		t.Fatalf("limiters = %d, want 2", got)
	}
}
