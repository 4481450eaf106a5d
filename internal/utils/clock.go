package utils

import "time"

// Clock is the single time source for window checks and timestamps.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
