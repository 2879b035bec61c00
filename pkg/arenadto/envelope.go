package arenadto

import "encoding/json"

// Envelope is the inbound frame on the realtime socket: {"action": ..., "data": {...}}.
type Envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Socket actions.
const (
	ActionSubscribe   = "subscribeLeaderboard"
	ActionUnsubscribe = "unsubscribeLeaderboard"
	ActionUpdateScore = "updateScore"
	ActionGetBoard    = "getLeaderboard"
)

// SubscribeData carries the payload of subscribe/unsubscribe frames.
type SubscribeData struct {
	GameID string `json:"gameId"`
}

// UpdateScoreData carries the payload of an updateScore frame.
type UpdateScoreData struct {
	GameID string   `json:"gameId"`
	Score  *float64 `json:"score"`
}

// GetBoardData carries the payload of a getLeaderboard frame.
type GetBoardData struct {
	GameID    string `json:"gameId"`
	Timeframe string `json:"timeframe"`
}

// ErrorFrame is pushed back to a client when a frame cannot be handled.
type ErrorFrame struct {
	Error string `json:"error"`
}
