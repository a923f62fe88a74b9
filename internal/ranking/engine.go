// Package ranking derives the leaderboard and per-user statistics from
// the score ledger. All computation is a full scan over the events
// handed in; nothing here touches storage.
package ranking

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
)

// Engine computes rankings over ledger events.
type Engine struct{}

// NewEngine creates a ranking engine.
func NewEngine() *Engine {
	return &Engine{}
}

// BuildLeaderboard reduces the ledger to one best-score entry per user,
// sorted by score descending, and returns the requested page.
//
// Within a user, the highest score wins; on a tie the earliest-created
// event is kept, so repeated reads never flap between equal events.
// Across users the sort is stable, keeping equal scores in first-seen
// ledger order. Rank numbers are absolute: offset + position + 1.
//
// A page beyond the last one yields an empty entry list, not an error.
func (e *Engine) BuildLeaderboard(events []domain.ScoreEvent, page, limit int) (*domain.Leaderboard, error) {
	if page < 1 || limit < 1 {
		return nil, domain.ErrInvalidPage
	}

	best := make(map[uuid.UUID]domain.ScoreEvent, len(events))
	order := make([]uuid.UUID, 0, len(events))

	for _, ev := range events {
		cur, seen := best[ev.UserID]
		if !seen {
			best[ev.UserID] = ev
			order = append(order, ev.UserID)
			continue
		}
		if ev.Score > cur.Score {
			best[ev.UserID] = ev
		} else if ev.Score == cur.Score && ev.CreatedAt.Before(cur.CreatedAt) {
			best[ev.UserID] = ev
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(order))
	for _, userID := range order {
		ev := best[userID]
		entries = append(entries, domain.LeaderboardEntry{
			UserID:    ev.UserID,
			Username:  ev.Username,
			Score:     ev.Score,
			GameType:  ev.GameType,
			CreatedAt: ev.CreatedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	total := int64(len(entries))
	pages := int(math.Ceil(float64(total) / float64(limit)))

	offset := (page - 1) * limit
	pageEntries := make([]domain.LeaderboardEntry, 0, limit)
	for i := offset; i < len(entries) && i < offset+limit; i++ {
		entry := entries[i]
		entry.Rank = int64(i + 1)
		pageEntries = append(pageEntries, entry)
	}

	return &domain.Leaderboard{
		Entries: pageEntries,
		Pagination: domain.Pagination{
			Total: total,
			Page:  page,
			Pages: pages,
		},
	}, nil
}

// Rank returns the 1-indexed position of the user's best score among
// all users' best scores, descending. Users who have never scored get
// domain.ErrRankNotFound.
func (e *Engine) Rank(events []domain.ScoreEvent, userID uuid.UUID) (int64, error) {
	best := make(map[uuid.UUID]int64, len(events))
	for _, ev := range events {
		if cur, ok := best[ev.UserID]; !ok || ev.Score > cur {
			best[ev.UserID] = ev.Score
		}
	}

	mine, ok := best[userID]
	if !ok {
		return 0, domain.ErrRankNotFound
	}

	rank := int64(1)
	for id, score := range best {
		if id != userID && score > mine {
			rank++
		}
	}
	return rank, nil
}

// ComputeStats aggregates one user's events. The high score is taken
// from the cached field on the user record rather than recomputed, so
// it may briefly lag the ledger after a crash between the two writes
// in a submission. The average is rounded half-up (scores are
// non-negative, so math.Round's half-away-from-zero is half-up).
func (e *Engine) ComputeStats(events []domain.ScoreEvent, highScore int64) domain.UserStats {
	stats := domain.UserStats{
		GamesPlayed: int64(len(events)),
		HighScore:   highScore,
	}

	if len(events) == 0 {
		return stats
	}

	for _, ev := range events {
		stats.TotalScore += ev.Score
	}
	stats.AverageScore = int64(math.Round(float64(stats.TotalScore) / float64(len(events))))

	return stats
}
