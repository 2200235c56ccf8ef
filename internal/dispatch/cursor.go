package dispatch

import "sync"

// Cursor is the dispatcher's single piece of retained state: the
// time_us of the most recently dispatched event. Advances are
// monotonic; AdvanceTo silently ignores a value at or below the
// current one.
type Cursor struct {
	mu    sync.Mutex
	value int64
}

func NewCursor(initial int64) *Cursor {
	return &Cursor{value: initial}
}

// Value returns the current cursor, for F's reconnect URL and for
// periodic persistence.
func (c *Cursor) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// AdvanceTo moves the cursor forward to t, reporting whether it did.
func (c *Cursor) AdvanceTo(t int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t <= c.value {
		return false
	}
	c.value = t
	return true
}

// Func returns a closure suitable for firehose.NewConsumer's
// cursorFunc parameter: read-only access so F can build reconnect URLs
// without being able to mutate the dispatcher's state.
func (c *Cursor) Func() func() int64 {
	return c.Value
}
