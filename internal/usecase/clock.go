package usecase

import "time"

// Clock returns the current time.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

func orSystem(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
