package delay

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Provider yields the pause applied between consecutive platform actions and
// after each render-triggering scroll. Injected so tests can substitute a
// zero-delay or seeded implementation without weakening the production
// policy.
type Provider interface {
	// Next returns the next pause duration.
	Next() time.Duration
	// Wait sleeps for Next() or until the context is cancelled, whichever
	// comes first. Returns the context error on cancellation.
	Wait(ctx context.Context) error
}

// Uniform draws each pause uniformly from [Min, Max]. A fixed cadence is
// detectable; the jitter is the point.
type Uniform struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniform creates a Uniform provider with its own seeded source.
func NewUniform(min, max time.Duration) *Uniform {
	if max < min {
		max = min
	}
	return &Uniform{
		Min: min,
		Max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSeeded creates a Uniform provider with a fixed seed, for deterministic
// tests.
func NewSeeded(min, max time.Duration, seed int64) *Uniform {
	u := NewUniform(min, max)
	u.rng = rand.New(rand.NewSource(seed))
	return u
}

func (u *Uniform) Next() time.Duration {
	if u.Max <= u.Min {
		return u.Min
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Min + time.Duration(u.rng.Int63n(int64(u.Max-u.Min)+1))
}

func (u *Uniform) Wait(ctx context.Context) error {
	return sleep(ctx, u.Next())
}

// Zero never pauses. For tests.
type Zero struct{}

func (Zero) Next() time.Duration          { return 0 }
func (Zero) Wait(ctx context.Context) error { return ctx.Err() }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
