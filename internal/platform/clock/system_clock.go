package clock

import "time"

// SystemClock returns the current wall-clock time in UTC at microsecond precision,
// which every storage backend can round-trip.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
