// Package clock abstracts the time source so every time-dependent comparison in
// the policy and store layers is deterministic under test.
package clock

import "time"

// Clock returns the current time. Production code passes System; tests pass a
// fixed function.
type Clock func() time.Time

// System is the wall clock.
var System Clock = time.Now

// Fixed returns a Clock pinned to t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}
