package clock

import "time"

// Clock supplies the timestamps written on families, memberships, logs and reminders.
// Implementations return UTC truncated to microseconds so values survive a round trip
// through Postgres and SQLite unchanged.
type Clock interface {
	Now() time.Time
}
