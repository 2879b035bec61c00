package arenadto

import "time"

// SnapshotRow is one ranked row of a leaderboard snapshot.
type SnapshotRow struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       float64   `json:"score"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// Snapshot is the frame pushed to subscribers after a score update
// and in response to a one-shot getLeaderboard request.
type Snapshot struct {
	Type          string        `json:"type"`
	LeaderboardID string        `json:"leaderboardId"`
	Timeframe     string        `json:"timeframe"`
	Entries       []SnapshotRow `json:"entries"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// SnapshotFrameType tags outbound snapshot frames so clients can route them.
const SnapshotFrameType = "leaderboardUpdate"
