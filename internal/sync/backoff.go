// ABOUTME: Retry backoff for failed sync cycles.
// ABOUTME: Each failure doubles the delay up to a ceiling; a success drops it back to the floor.
package sync

import "time"

// Backoff tracks the delay before the next sync attempt after failures.
// It is not safe for concurrent use; Engine guards it.
type Backoff struct {
	Floor   time.Duration
	Ceiling time.Duration

	next     time.Duration
	failures int
}

// NewBackoff returns a Backoff starting at floor.
func NewBackoff(floor, ceiling time.Duration) *Backoff {
	if floor <= 0 {
		floor = time.Second
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &Backoff{Floor: floor, Ceiling: ceiling, next: floor}
}

// Fail records a failure and returns the delay to wait before retrying.
func (b *Backoff) Fail() time.Duration {
	if b.next == 0 {
		b.next = b.Floor
	}
	d := b.next
	b.next = min(b.next*2, b.Ceiling)
	b.failures++
	return d
}

// Reset drops the delay back to the floor.
func (b *Backoff) Reset() {
	b.next = b.Floor
	b.failures = 0
}

// Current is the delay the next failure would produce.
func (b *Backoff) Current() time.Duration {
	if b.next == 0 {
		return b.Floor
	}
	return b.next
}

// Failures is the number of consecutive failures since the last reset.
func (b *Backoff) Failures() int {
	return b.failures
}
