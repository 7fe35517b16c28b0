package service

import "time"

// Clock abstracts wall-clock time and timer creation so session timing can be
// driven deterministically in tests. Timer cancellation must be synchronous
// under the session lock, so no refresh can fire after the session went idle.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock is the Clock used outside of tests.
func SystemClock() Clock {
	return systemClock{}
}
