package app

import "time"

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
