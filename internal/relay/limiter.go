/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import "time"

// windowLimiter allows at most limit events per key in any rolling window.
// It is owned by a single hub goroutine and is not safe for concurrent use.
type windowLimiter struct {
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records an event for key at now, unless that would exceed the limit.
func (l *windowLimiter) Allow(key string, now time.Time) bool {
	if l.limit <= 0 {
		return true
	}

	cutoff := now.Add(-l.window)
	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}

	l.hits[key] = append(recent, now)
	return true
}

// Forget drops the history of key.
func (l *windowLimiter) Forget(key string) {
	delete(l.hits, key)
}
