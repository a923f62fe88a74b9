package domain

import (
	"time"

	"github.com/google/uuid"
)

// GameTypeCounter is the only game type the service records today. The
// tag is stored on every event so additional game modes can be ranked
// separately later without a schema change.
const GameTypeCounter = "counter"

// ScoreEvent is one immutable record of a completed game round. The
// username is a denormalized snapshot taken at write time; it is kept
// approximately in sync with the owning user by a bulk rewrite whenever
// the user renames.
type ScoreEvent struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user"`
	Username  string    `json:"username"`
	Score     int64     `json:"score"`
	GameType  string    `json:"gameType"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeaderboardEntry is one user's best score on the ranked leaderboard.
// Derived on every read, never persisted.
type LeaderboardEntry struct {
	Rank      int64     `json:"rank"`
	UserID    uuid.UUID `json:"user"`
	Username  string    `json:"username"`
	Score     int64     `json:"score"`
	GameType  string    `json:"gameType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pagination describes the leaderboard page a response covers. Total is
// the count of distinct users with at least one score.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
}

// Leaderboard is a page of ranked entries plus its pagination block.
type Leaderboard struct {
	Entries    []LeaderboardEntry `json:"scores"`
	Pagination Pagination         `json:"pagination"`
}

// UserStats aggregates a single user's play history. HighScore comes
// from the cached field on the user record, not from the ledger.
type UserStats struct {
	GamesPlayed  int64 `json:"gamesPlayed"`
	HighScore    int64 `json:"highScore"`
	AverageScore int64 `json:"averageScore"`
	TotalScore   int64 `json:"totalScore"`
}
