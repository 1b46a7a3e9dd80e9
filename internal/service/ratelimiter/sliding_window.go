// Package ratelimiter admits requests per client using a sliding window of
// request timestamps.
package ratelimiter

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

// LimitError is returned when a client has used up its window.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Unwrap maps the error onto the domain taxonomy.
func (e *LimitError) Unwrap() error { return domain.ErrRateLimited }

// RetryAfterSeconds rounds the wait up to whole seconds, minimum 1.
func (e *LimitError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

type clientWindow struct {
	key    string
	stamps []time.Time
}

// SlidingWindow is the in-process limiter. One mutex guards the whole table,
// so read-check-append is atomic per client. The table is bounded: when it
// holds maxClients entries the least recently seen client is evicted.
type SlidingWindow struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	maxClients  int
	order       *list.List
	clients     map[string]*list.Element
}

// NewSlidingWindow builds a limiter allowing maxRequests per window for each
// client. maxClients <= 0 means unbounded.
func NewSlidingWindow(maxRequests int, window time.Duration, maxClients int) *SlidingWindow {
	if maxRequests < 1 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Hour
	}
	return &SlidingWindow{
		maxRequests: maxRequests,
		window:      window,
		maxClients:  maxClients,
		order:       list.New(),
		clients:     make(map[string]*list.Element),
	}
}

var _ domain.RateLimiter = (*SlidingWindow)(nil)

// Admit records a request for clientID at now, or returns *LimitError when
// the client already has maxRequests timestamps inside the window.
func (l *SlidingWindow) Admit(_ context.Context, clientID string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.clients[clientID]
	if !ok {
		l.evictIfFull()
		el = l.order.PushFront(&clientWindow{key: clientID})
		l.clients[clientID] = el
	} else {
		l.order.MoveToFront(el)
	}
	cw := el.Value.(*clientWindow)
	cw.stamps = prune(cw.stamps, now, l.window)

	if len(cw.stamps) >= l.maxRequests {
		retry := l.window - now.Sub(cw.stamps[0])
		if retry < 0 {
			retry = 0
		}
		return &LimitError{RetryAfter: retry}
	}
	cw.stamps = append(cw.stamps, now)
	return nil
}

// Sweep drops clients whose window is empty at now and returns how many were
// removed.
func (l *SlidingWindow) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for el := l.order.Back(); el != nil; {
		prev := el.Prev()
		cw := el.Value.(*clientWindow)
		cw.stamps = prune(cw.stamps, now, l.window)
		if len(cw.stamps) == 0 {
			l.order.Remove(el)
			delete(l.clients, cw.key)
			removed++
		}
		el = prev
	}
	return removed
}

// Len is the number of tracked clients.
func (l *SlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Run sweeps every interval until ctx is done. onSweep, if set, receives the
// number of removed clients and the number still tracked.
func (l *SlidingWindow) Run(ctx context.Context, interval time.Duration, onSweep func(removed, tracked int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := l.Sweep(now)
			if onSweep != nil {
				onSweep(removed, l.Len())
			}
		}
	}
}

func (l *SlidingWindow) evictIfFull() {
	if l.maxClients <= 0 {
		return
	}
	for len(l.clients) >= l.maxClients {
		back := l.order.Back()
		if back == nil {
			return
		}
		l.order.Remove(back)
		delete(l.clients, back.Value.(*clientWindow).key)
	}
}

// prune keeps timestamps with now - ts < window. Stamps are in arrival order.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= window {
		i++
	}
	if i == 0 {
		return stamps
	}
	n := copy(stamps, stamps[i:])
	return stamps[:n]
}
