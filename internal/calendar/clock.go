package calendar

import "time"

// Clock reports the viewer's current local calendar date.
type Clock interface {
	Today() Date
}

// LocalClock reads the wall clock in Location (time.Local when nil).
type LocalClock struct {
	Location *time.Location
}

func (c LocalClock) Today() Date {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return Of(time.Now().In(loc))
}

// FixedClock always reports the same day. Useful in tests and replays.
type FixedClock Date

func (c FixedClock) Today() Date { return Date(c) }
