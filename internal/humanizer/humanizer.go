// Package humanizer produces randomized but bounded timing and motion traces
// that resemble human interaction.
package humanizer

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Humanizer owns a random source. Generators are safe for concurrent use.
type Humanizer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep Sleeper
}

// New returns a Humanizer seeded from the clock.
func New() *Humanizer {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()), SleepContext)
}

// NewWithSource returns a Humanizer over src. A nil sleeper never blocks.
func NewWithSource(src rand.Source, sleep Sleeper) *Humanizer {
	if sleep == nil {
		sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	}
	return &Humanizer{rng: rand.New(src), sleep: sleep}
}

// SleepContext is a context-aware time.Sleep.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Duration samples uniformly in [min, max). It returns min when max <= min.
func (h *Humanizer) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return min + time.Duration(h.rng.Int63n(int64(max-min)))
}

// Delay sleeps for a duration sampled by Duration and returns it.
func (h *Humanizer) Delay(ctx context.Context, min, max time.Duration) (time.Duration, error) {
	d := h.Duration(min, max)
	return d, h.sleep(ctx, d)
}

// Sleep waits for d using the configured sleeper.
func (h *Humanizer) Sleep(ctx context.Context, d time.Duration) error {
	return h.sleep(ctx, d)
}

// IntBetween samples uniformly in [min, max], both inclusive.
func (h *Humanizer) IntBetween(min, max int) int {
	if max <= min {
		return min
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return min + h.rng.Intn(max-min+1)
}

// Chance reports true with probability p.
func (h *Humanizer) Chance(p float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64() < p
}

func (h *Humanizer) float(min, max float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return min + h.rng.Float64()*(max-min)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
