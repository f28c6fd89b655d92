package scheduler

import "time"

// Clock abstracts time for the scheduler's waits so tests can drive
// backoff and rate-limit countdowns with simulated time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
