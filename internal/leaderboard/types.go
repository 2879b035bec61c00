package leaderboard

import (
	"errors"
	"strings"
	"time"

	"github.com/kapu/arena-live-go/pkg/arenadto"
)

// Entry is one user's current row on a leaderboard. The store keeps one
// row per (leaderboard, user); later submissions supersede it.
type Entry struct {
	LeaderboardID string
	UserID        string
	DisplayName   string
	Score         float64
	RecordedAt    time.Time
}

// Timeframe selects the time window of a ranked query.
type Timeframe string

const (
	TimeframeAll     Timeframe = "all"
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

var ErrBadTimeframe = errors.New("timeframe must be one of all, daily, weekly, monthly")

// ParseTimeframe normalizes a request parameter. Empty means "all".
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(strings.ToLower(strings.TrimSpace(s))) {
	case "", TimeframeAll:
		return TimeframeAll, nil
	case TimeframeDaily:
		return TimeframeDaily, nil
	case TimeframeWeekly:
		return TimeframeWeekly, nil
	case TimeframeMonthly:
		return TimeframeMonthly, nil
	default:
		return "", ErrBadTimeframe
	}
}

// WindowStart returns the inclusive lower bound of the timeframe as a
// rolling window ending at now. The second result is false for "all".
func (tf Timeframe) WindowStart(now time.Time) (time.Time, bool) {
	switch tf {
	case TimeframeDaily:
		return now.Add(-24 * time.Hour), true
	case TimeframeWeekly:
		return now.Add(-7 * 24 * time.Hour), true
	case TimeframeMonthly:
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

// BuildSnapshot assigns 1-based ranks to an already ordered entry list.
func BuildSnapshot(leaderboardID string, tf Timeframe, entries []Entry) *arenadto.Snapshot {
	rows := make([]arenadto.SnapshotRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, arenadto.SnapshotRow{
			Rank:        i + 1,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Score:       e.Score,
			RecordedAt:  e.RecordedAt,
		})
	}
	return &arenadto.Snapshot{
		Type:          arenadto.SnapshotFrameType,
		LeaderboardID: leaderboardID,
		Timeframe:     string(tf),
		Entries:       rows,
		GeneratedAt:   time.Now().UTC(),
	}
}
