package delay

import (
	"context"
	"testing"
	"time"
)

func TestUniformStaysInRange(t *testing.T) {
	u := NewSeeded(30*time.Second, 60*time.Second, 42)

	for i := 0; i < 1000; i++ {
		d := u.Next()
		if d < 30*time.Second || d > 60*time.Second {
			t.Fatalf("draw %d out of range: %v", i, d)
		}
	}
}

func TestUniformJitters(t *testing.T) {
	u := NewSeeded(time.Second, 10*time.Second, 7)

	seen := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		seen[u.Next()] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected varying draws, got a constant")
	}
}

func TestUniformDegenerateRange(t *testing.T) {
	u := NewUniform(5*time.Second, 5*time.Second)
	if got := u.Next(); got != 5*time.Second {
		t.Fatalf("Next() = %v, want 5s", got)
	}

	// Inverted bounds collapse to min rather than panicking.
	u = NewUniform(10*time.Second, time.Second)
	if got := u.Next(); got != 10*time.Second {
		t.Fatalf("Next() = %v, want 10s", got)
	}
}

func TestWaitHonoursCancellation(t *testing.T) {
	u := NewSeeded(time.Hour, 2*time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Wait() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestZero(t *testing.T) {
	var z Zero
	if z.Next() != 0 {
		t.Fatal("Zero.Next() should be 0")
	}
	if err := z.Wait(context.Background()); err != nil {
		t.Fatalf("Zero.Wait() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := z.Wait(ctx); err != context.Canceled {
		t.Fatalf("Zero.Wait(cancelled) = %v, want context.Canceled", err)
	}
}
