package limiter

import (
	"context"
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(3, 60)
	for i := 0; i < 3; i++ {
		if !l.Allow("openai") {
			t.Fatalf("call %d should be allowed within burst", i)
		}
	}
	if l.Allow("openai") {
		t.Error("fourth call should exceed burst capacity")
	}
}

func TestProvidersIsolated(t *testing.T) {
	l := New(1, 60)
	if !l.Allow("openai") {
		t.Fatal("first openai call should pass")
	}
	if !l.Allow("anthropic") {
		t.Error("anthropic bucket should be independent")
	}
}

func TestWaitRefills(t *testing.T) {
	// 1 burst, 6000/min = 100/s refill: exhausted bucket recovers in ~10ms.
	l := New(1, 6000)
	if !l.Allow("ollama") {
		t.Fatal("first call should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	if err := l.Wait(ctx, "ollama"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Wait took too long for a fast refill rate")
	}
}

func TestWaitRespectsContext(t *testing.T) {
	l := New(1, 0.001)
	l.Allow("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "slow"); err == nil {
		t.Error("Wait should fail when context expires before refill")
	}
}
