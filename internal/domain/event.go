package domain

import (
	"time"

	"github.com/google/uuid"
)

// Discovery outcomes recorded in metrics and events.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// DiscoveryEvent summarizes one discovery invocation for downstream analytics.
type DiscoveryEvent struct {
	ID             string    `json:"id"`
	Mode           Mode      `json:"mode,omitempty"`
	Query          string    `json:"query,omitempty"`
	RewrittenQuery string    `json:"rewritten_query,omitempty"`
	Origin         *GeoPoint `json:"origin,omitempty"`
	Count          int       `json:"count"`
	Outcome        string    `json:"outcome"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewDiscoveryEvent builds an event for a finished discovery. err may be nil.
func NewDiscoveryEvent(mode Mode, req DiscoveryRequest, result DiscoveryResult, err error, elapsed time.Duration) DiscoveryEvent {
	event := DiscoveryEvent{
		ID:             uuid.NewString(),
		Mode:           mode,
		Query:          req.Query,
		RewrittenQuery: result.RewrittenQuery,
		Origin:         result.Origin,
		Count:          result.Count,
		Outcome:        Outcome(result, err),
		ErrorKind:      KindOf(err),
		DurationMS:     elapsed.Milliseconds(),
		OccurredAt:     clock.Now().UTC(),
	}
	if err != nil {
		event.Count = 0
	}
	return event
}

// Outcome classifies a finished discovery. An empty result is not a failure.
func Outcome(result DiscoveryResult, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case result.Count == 0:
		return OutcomeEmpty
	default:
		return OutcomeSuccess
	}
}
