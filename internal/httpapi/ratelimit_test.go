package httpapi

import (
	"testing"
	"time"
)

func TestTokenLimiterBurstThenDeny(t *testing.T) {
	l := newTokenLimiter(60, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatal("request past burst was allowed")
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("other client was denied")
	}
}

func TestTokenLimiterPrunesIdleBuckets(t *testing.T) {
	l := newTokenLimiter(60, 3)
	l.allow("10.0.0.1")
	l.buckets["10.0.0.1"].last = time.Now().Add(-2 * bucketIdleExpiry)
	l.lastPrune = time.Now().Add(-2 * bucketIdleExpiry)
	l.allow("10.0.0.2")
	if _, ok := l.buckets["10.0.0.1"]; ok {
		t.Fatal("idle bucket survived prune")
	}
	if _, ok := l.buckets["10.0.0.2"]; !ok {
		t.Fatal("active bucket was pruned")
	}
}
