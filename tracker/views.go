// Package tracker provides in-memory view de-duplication for posts.
package tracker

import (
	"fmt"
	"sync"
	"time"
)

// Default tracking windows.
const (
	DefaultWindow = 30 * time.Minute
	DefaultMaxAge = 2 * time.Hour
)

// ViewTracker suppresses repeat view counts per (post, session, IP)
// within a time window. It is process-local and best-effort: state is
// lost on restart and a racing pair of requests may double-count, which
// is acceptable for a denormalized counter. Stale entries are evicted on
// insert to bound memory.
type ViewTracker struct {
	mu       sync.Mutex
	window   time.Duration
	maxAge   time.Duration
	lastSeen map[string]time.Time
	now      func() time.Time
}

// New creates a ViewTracker with the given suppression window and entry
// max age.
func New(window, maxAge time.Duration) *ViewTracker {
	return &ViewTracker{
		window:   window,
		maxAge:   maxAge,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func viewKey(postID uint, sessionID, ipAddress string) string {
	return fmt.Sprintf("%d|%s|%s", postID, sessionID, ipAddress)
}

// ShouldCount reports whether this view should increment the counter,
// and records it if so.
func (t *ViewTracker) ShouldCount(postID uint, sessionID, ipAddress string) bool {
	key := viewKey(postID, sessionID, ipAddress)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastSeen[key]; ok && now.Sub(last) <= t.window {
		return false
	}

	t.lastSeen[key] = now
	t.evictLocked(now)
	return true
}

// evictLocked drops entries older than maxAge. Caller holds the lock.
func (t *ViewTracker) evictLocked(now time.Time) {
	for key, seen := range t.lastSeen {
		if now.Sub(seen) > t.maxAge {
			delete(t.lastSeen, key)
		}
	}
}

// Size returns the number of tracked entries.
func (t *ViewTracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastSeen)
}
