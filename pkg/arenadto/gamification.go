package arenadto

import "time"

// StreakView is the read projection of a user's play streak.
// CurrentStreak is already zeroed when the stored streak went stale.
type StreakView struct {
	UserID          string `json:"userId"`
	CurrentStreak   int    `json:"currentStreak"`
	LongestStreak   int    `json:"longestStreak"`
	LastPlayDate    string `json:"lastPlayDate,omitempty"`
	TotalDaysPlayed int    `json:"totalDaysPlayed"`
}

// UnlockedAchievement joins an unlock row with its catalog entry.
type UnlockedAchievement struct {
	AchievementID string    `json:"achievementId"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}

// Progress is the REST representation of a user's progress record.
type Progress struct {
	UserID      string    `json:"userId"`
	Level       int       `json:"level"`
	TotalScore  float64   `json:"totalScore"`
	GamesPlayed int       `json:"gamesPlayed"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
