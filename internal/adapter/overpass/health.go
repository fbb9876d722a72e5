package overpass

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// EndpointHealth remembers which endpoints recently exhausted their attempts.
// Such endpoints are tried after healthy ones until the cooldown passes.
type EndpointHealth struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	cooldown time.Duration
	failedAt map[string]time.Time
}

// NewEndpointHealth creates a tracker. A zero cooldown disables reordering.
func NewEndpointHealth(cooldown time.Duration, clock clockwork.Clock) *EndpointHealth {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &EndpointHealth{
		clock:    clock,
		cooldown: cooldown,
		failedAt: make(map[string]time.Time),
	}
}

// Order returns endpoints with recently failed ones moved to the back.
// Configured priority is preserved within each group.
func (h *EndpointHealth) Order(endpoints []string) []string {
	out := make([]string, 0, len(endpoints))
	if h.cooldown <= 0 {
		return append(out, endpoints...)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	var demoted []string
	for _, ep := range endpoints {
		if at, ok := h.failedAt[ep]; ok && now.Sub(at) < h.cooldown {
			demoted = append(demoted, ep)
			continue
		}
		out = append(out, ep)
	}
	return append(out, demoted...)
}

// MarkFailed records that ep exhausted its attempts.
func (h *EndpointHealth) MarkFailed(ep string) {
	h.mu.Lock()
	h.failedAt[ep] = h.clock.Now()
	h.mu.Unlock()
}

// MarkHealthy clears any failure recorded for ep.
func (h *EndpointHealth) MarkHealthy(ep string) {
	h.mu.Lock()
	delete(h.failedAt, ep)
	h.mu.Unlock()
}
