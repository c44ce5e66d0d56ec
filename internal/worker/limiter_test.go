package worker

import (
	"context"
	"testing"
	"time"
)

// allow consumes a token for rawURL's host without waiting
func allow(t *testing.T, l *Limiter, rawURL string) bool {
	t.Helper()
	host, err := extractHost(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	return l.getLimiter(host).Allow()
}

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !allow(t, limiter, "http://ledger.local/v1/records") {
		t.Fatal("expected first request allowed")
	}
	if allow(t, limiter, "http://ledger.local/v1/records/practice-1") {
		t.Error("expected second request to the same host to be limited")
	}
	if !allow(t, limiter, "http://relayer.local/v1/encrypt") {
		t.Error("expected other host allowed")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !allow(t, limiter, "http://ledger.local") {
			t.Fatalf("expected unlimited limiter to allow request %d", i)
		}
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	url := "http://ledger.local"
	_ = limiter.Wait(context.Background(), url)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, url); err == nil {
		t.Error("expected wait to fail once context expires")
	}
}
