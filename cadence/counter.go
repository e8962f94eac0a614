// Package cadence holds the single tick counter every periodic action is
// scheduled from.
package cadence

// DefaultBound is one day of ticks at one tick per second.
const DefaultBound uint32 = 86400

// Counter advances once per tick and wraps to 1 once it exceeds its bound.
// Wrapping to 1 rather than 0 keeps every IsDue check from firing on the
// reset tick. The value is a modulus operand, not a clock.
type Counter struct {
	n     uint32
	bound uint32
}

// New returns a counter at 0. A zero bound selects DefaultBound.
func New(bound uint32) *Counter {
	if bound == 0 {
		bound = DefaultBound
	}
	return &Counter{bound: bound}
}

// Advance increments the counter and applies the wrap rule.
func (c *Counter) Advance() uint32 {
	c.n++
	if c.n > c.bound {
		c.n = 1
	}
	return c.n
}

// IsDue reports whether counter mod period == 0. Non-positive periods are
// never due.
func (c *Counter) IsDue(period uint32) bool {
	if period == 0 {
		return false
	}
	return c.n%period == 0
}

func (c *Counter) Value() uint32 { return c.n }
func (c *Counter) Bound() uint32 { return c.bound }
