// Package ratelimit bounds how often a client identity may submit leads.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultLimit  = 3
	DefaultWindow = time.Hour

	anonymousKey = "anonymous"
)

// SlidingWindow remembers the accepted request times of each key and admits at most
// limit requests per key in any window-long interval.
type SlidingWindow struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	mu     sync.Mutex
	stamps []time.Time
	pruned bool
}

// New returns a limiter. Non-positive limit or window fall back to the defaults and a
// nil clock uses time.Now.
func New(limit int, window time.Duration, clock func() time.Time) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindow{
		limit:   limit,
		window:  window,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether key may make another request now. Accepted requests are
// recorded; rejected ones are not.
func (l *SlidingWindow) Allow(key string) bool {
	key = normalizeKey(key)
	b := l.lockedBucket(key)
	defer b.mu.Unlock()

	now := l.clock()
	b.stamps = recent(b.stamps, now.Add(-l.window))
	if len(b.stamps) >= l.limit {
		return false
	}
	b.stamps = append(b.stamps, now)
	return true
}

// Remaining returns how many more requests key may make in the current window.
func (l *SlidingWindow) Remaining(key string) int {
	key = normalizeKey(key)
	l.mu.Lock()
	b, ok := l.buckets[key]
	l.mu.Unlock()
	if !ok {
		return l.limit
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	left := l.limit - len(recent(b.stamps, l.clock().Add(-l.window)))
	if left < 0 {
		return 0
	}
	return left
}

// Prune drops keys that have no requests inside the window and returns how many were removed.
func (l *SlidingWindow) Prune() int {
	cutoff := l.clock().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if !b.mu.TryLock() {
			continue
		}
		b.stamps = recent(b.stamps, cutoff)
		if len(b.stamps) == 0 {
			b.pruned = true
			delete(l.buckets, key)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// lockedBucket returns the live bucket for key with its mutex held. A bucket removed by
// Prune between lookup and lock is skipped and looked up again.
func (l *SlidingWindow) lockedBucket(key string) *bucket {
	for {
		l.mu.Lock()
		b, ok := l.buckets[key]
		if !ok {
			b = &bucket{}
			l.buckets[key] = b
		}
		l.mu.Unlock()

		b.mu.Lock()
		if !b.pruned {
			return b
		}
		b.mu.Unlock()
	}
}

// recent keeps the timestamps strictly after cutoff. Stamps are appended in clock order
// so the survivors are a suffix.
func recent(stamps []time.Time, cutoff time.Time) []time.Time {
	for i, ts := range stamps {
		if ts.After(cutoff) {
			if i == 0 {
				return stamps
			}
			return append(stamps[:0], stamps[i:]...)
		}
	}
	return stamps[:0]
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return anonymousKey
	}
	return key
}
