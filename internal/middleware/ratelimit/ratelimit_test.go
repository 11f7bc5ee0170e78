package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, Burst: 3})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("request beyond burst was allowed")
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, Burst: 1})
	defer l.Stop()

	if !l.Allow("10.0.0.1") {
		t.Fatal("first client denied")
	}
	if l.Allow("10.0.0.1") {
		t.Error("first client should be exhausted")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("second client should have its own bucket")
	}
	if got := l.ActiveClients(); got != 2 {
		t.Errorf("ActiveClients() = %d, want 2", got)
	}
}

func TestSweepDropsStaleClients(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	defer l.Stop()

	l.Allow("10.0.0.1")
	l.mu.Lock()
	l.clients["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	l.mu.Unlock()

	l.sweep()
	if got := l.ActiveClients(); got != 0 {
		t.Errorf("ActiveClients() after sweep = %d, want 0", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	l.Stop()
	l.Stop()
}
