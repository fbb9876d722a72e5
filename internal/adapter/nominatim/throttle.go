package nominatim

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle enforces a minimum interval between calls across all goroutines.
// Each caller reserves the next free slot under the lock and then sleeps
// until that slot outside it, so waiters queue in arrival order.
type Throttle struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	interval time.Duration
	next     time.Time
}

// NewThrottle creates a throttle. A nil clock means real time.
func NewThrottle(interval time.Duration, clock clockwork.Clock) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{clock: clock, interval: interval}
}

// Wait blocks until the caller may issue its request and returns how long it
// waited. A cancelled context still consumes the reserved slot.
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	t.mu.Lock()
	now := t.clock.Now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return 0, nil
	}

	select {
	case <-ctx.Done():
		return wait, ctx.Err()
	case <-t.clock.After(wait):
		return wait, nil
	}
}
