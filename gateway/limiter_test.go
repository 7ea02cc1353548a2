package gateway

import (
	"testing"
	"time"
)

func TestTokenBucketBurst(t *testing.T) {
	l := NewTokenBucketLimiter(1000, 5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		l.Wait()
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("burst should not block, took %v", elapsed)
	}
}

func TestTokenBucketThrottles(t *testing.T) {
	l := NewTokenBucketLimiter(100, 1)

	l.Wait() // consume the only token
	start := time.Now()
	l.Wait()
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Fatalf("expected second call to wait for refill, took %v", elapsed)
	}
}

func TestTokenBucketDefaults(t *testing.T) {
	l := NewTokenBucketLimiter(0, 0)
	if l.rate != 1 || l.burst != 1 {
		t.Fatalf("expected defaults rate=1 burst=1, got rate=%v burst=%d", l.rate, l.burst)
	}
}
