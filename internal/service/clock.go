package service

import "time"

// Clock supplies the current time. Every service takes one so that tests can
// pin "now" instead of racing the wall clock.
type Clock func() time.Time

func defaultClock() time.Time {
	return time.Now().UTC()
}
