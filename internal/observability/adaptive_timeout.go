package observability

import (
	"log/slog"
	"sync"
	"time"
)

// CallResult classifies one finished outbound call.
type CallResult string

// Call results reported to metrics and the adaptive timeout.
const (
	CallSuccess  CallResult = "success"
	CallFailure  CallResult = "failure"
	CallTimeout  CallResult = "timeout"
	CallCanceled CallResult = "canceled"
)

// AdaptiveTimeout holds the deadline for one dependency. It starts at max,
// shrinks by 5% after a call that finished in under half the deadline, and
// grows by 5% after a failure or 10% after a timeout. It never leaves
// [min, max].
type AdaptiveTimeout struct {
	mu      sync.RWMutex
	min     time.Duration
	max     time.Duration
	current time.Duration
}

// NewAdaptiveTimeout builds a timeout bounded by min and max. A min that is
// unset or above max pins the deadline at max.
func NewAdaptiveTimeout(min, max time.Duration) *AdaptiveTimeout {
	if max <= 0 {
		max = 30 * time.Second
	}
	if min <= 0 || min > max {
		min = max
	}
	return &AdaptiveTimeout{min: min, max: max, current: max}
}

// Current returns the deadline the next call will get.
func (a *AdaptiveTimeout) Current() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Observe adjusts the deadline after a call. Canceled calls say nothing
// about the dependency and are ignored.
func (a *AdaptiveTimeout) Observe(took time.Duration, result CallResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	old := a.current
	switch result {
	case CallSuccess:
		if took < a.current/2 {
			a.current = a.clamp(time.Duration(float64(a.current) * 0.95))
		}
	case CallFailure:
		a.current = a.clamp(time.Duration(float64(a.current) * 1.05))
	case CallTimeout:
		a.current = a.clamp(time.Duration(float64(a.current) * 1.10))
	default:
		return
	}
	if a.current != old {
		slog.Debug("adaptive timeout adjusted",
			slog.String("result", string(result)),
			slog.Duration("old_timeout", old),
			slog.Duration("new_timeout", a.current))
	}
}

func (a *AdaptiveTimeout) clamp(d time.Duration) time.Duration {
	if d < a.min {
		return a.min
	}
	if d > a.max {
		return a.max
	}
	return d
}
