package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(window, maxAge time.Duration) (*ViewTracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tr := New(window, maxAge)
	tr.now = clock.now
	return tr, clock
}

func TestShouldCount_SuppressesWithinWindow(t *testing.T) {
	tr, clock := newTestTracker(30*time.Minute, 2*time.Hour)

	assert.True(t, tr.ShouldCount(1, "sess", "10.0.0.1"))
	assert.False(t, tr.ShouldCount(1, "sess", "10.0.0.1"))

	clock.advance(29 * time.Minute)
	assert.False(t, tr.ShouldCount(1, "sess", "10.0.0.1"))

	clock.advance(2 * time.Minute)
	assert.True(t, tr.ShouldCount(1, "sess", "10.0.0.1"))
}

func TestShouldCount_KeyedPerPostSessionIP(t *testing.T) {
	tr, _ := newTestTracker(30*time.Minute, 2*time.Hour)

	assert.True(t, tr.ShouldCount(1, "sess", "10.0.0.1"))
	assert.True(t, tr.ShouldCount(2, "sess", "10.0.0.1"))
	assert.True(t, tr.ShouldCount(1, "other", "10.0.0.1"))
	assert.True(t, tr.ShouldCount(1, "sess", "10.0.0.2"))
	assert.False(t, tr.ShouldCount(1, "sess", "10.0.0.1"))
}

func TestEviction_DropsStaleEntries(t *testing.T) {
	tr, clock := newTestTracker(30*time.Minute, 2*time.Hour)

	tr.ShouldCount(1, "old", "10.0.0.1")
	assert.Equal(t, 1, tr.Size())

	clock.advance(2*time.Hour + time.Minute)
	tr.ShouldCount(2, "new", "10.0.0.1")
	// The stale entry is gone; only the fresh one remains.
	assert.Equal(t, 1, tr.Size())
}
