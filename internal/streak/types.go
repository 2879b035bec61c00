package streak

import "time"

// Record is a user's durable play-streak state. LastPlayDate is held at
// day granularity; LongestStreak >= CurrentStreak always.
type Record struct {
	UserID          string
	CurrentStreak   int
	LongestStreak   int
	LastPlayDate    *time.Time
	TotalDaysPlayed int
}

const dateLayout = "2006-01-02"

// day truncates t to its UTC calendar day.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysApart returns the whole calendar days from a to b (both day-truncated).
func daysApart(a, b time.Time) int {
	return int(day(b).Sub(day(a)).Hours() / 24)
}
