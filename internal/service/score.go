package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/config"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/ranking"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/redis"
)

// recentScoreLimit caps the personal score history returned to a user.
const recentScoreLimit = 10

// UserStore is the identity store: user records with credentials,
// display name and the cached high score.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*domain.User, error)
	UpdateHighScoreIfGreater(ctx context.Context, id uuid.UUID, score int64) (bool, error)
}

// ScoreLedger is the append-only store of score events.
type ScoreLedger interface {
	AppendScore(ctx context.Context, event *domain.ScoreEvent) error
	AllEvents(ctx context.Context) ([]domain.ScoreEvent, error)
	EventsByUser(ctx context.Context, userID uuid.UUID) ([]domain.ScoreEvent, error)
	RecentEventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ScoreEvent, error)
	RewriteUsername(ctx context.Context, userID uuid.UUID, username string) (int64, error)
}

// ScoreService orchestrates score persistence, ranking and statistics.
type ScoreService struct {
	users  UserStore
	ledger ScoreLedger
	mirror *redis.RankMirror
	engine *ranking.Engine
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewScoreService creates a new score service. The rank mirror is
// optional; without it per-user rank lookups fall back to a ledger
// scan.
func NewScoreService(
	users UserStore,
	ledger ScoreLedger,
	mirror *redis.RankMirror,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *ScoreService {
	return &ScoreService{
		users:  users,
		ledger: ledger,
		mirror: mirror,
		engine: ranking.NewEngine(),
		config: cfg,
		logger: logger,
	}
}

// SubmitScore appends one completed game to the ledger with the user's
// current username snapshot, then raises the cached high score if the
// submission beats it. The two writes are not transactional: a failure
// after the append leaves the cache briefly stale, which readers must
// tolerate, so cache and mirror failures are logged rather than
// surfaced.
func (s *ScoreService) SubmitScore(ctx context.Context, userID uuid.UUID, score int64) (*domain.ScoreEvent, error) {
	if score < 0 {
		return nil, domain.ErrInvalidScore
	}

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	event := &domain.ScoreEvent{
		ID:        uuid.New(),
		UserID:    user.ID,
		Username:  user.Username,
		Score:     score,
		GameType:  domain.GameTypeCounter,
		CreatedAt: time.Now(),
	}

	if err := s.ledger.AppendScore(ctx, event); err != nil {
		return nil, fmt.Errorf("appending score: %w", err)
	}

	if score > user.HighScore {
		if _, err := s.users.UpdateHighScoreIfGreater(ctx, user.ID, score); err != nil {
			s.logger.Warn("failed to update cached high score",
				"user_id", user.ID,
				"score", score,
				"error", err,
			)
		}
	}

	if s.mirror != nil {
		if _, err := s.mirror.SetScoreIfBetter(ctx, user.ID, score); err != nil {
			s.logger.Warn("failed to update rank mirror",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	return event, nil
}

// GetLeaderboard returns one page of the ranked leaderboard. The page
// is recomputed from the full ledger on every call.
func (s *ScoreService) GetLeaderboard(ctx context.Context, page, limit int) (*domain.Leaderboard, error) {
	if page < 1 || limit < 1 {
		return nil, domain.ErrInvalidPage
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	events, err := s.ledger.AllEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	return s.engine.BuildLeaderboard(events, page, limit)
}

// GetUserScores returns the user's most recent events, newest first.
func (s *ScoreService) GetUserScores(ctx context.Context, userID uuid.UUID) ([]domain.ScoreEvent, error) {
	events, err := s.ledger.RecentEventsByUser(ctx, userID, recentScoreLimit)
	if err != nil {
		return nil, fmt.Errorf("loading recent scores: %w", err)
	}
	return events, nil
}

// GetUserStats aggregates the user's play history. The high score is
// read from the cached field on the user record.
func (s *ScoreService) GetUserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	events, err := s.ledger.EventsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user events: %w", err)
	}

	stats := s.engine.ComputeStats(events, user.HighScore)
	return &stats, nil
}

// GetUserRank returns the user's 1-indexed position by best score,
// served from the rank mirror when available.
func (s *ScoreService) GetUserRank(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.mirror != nil {
		rank, err := s.mirror.GetRank(ctx, userID)
		if err == nil || domain.IsNotFoundError(err) {
			return rank, err
		}
		s.logger.Warn("rank mirror lookup failed, falling back to ledger", "error", err)
	}

	events, err := s.ledger.AllEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading ledger: %w", err)
	}
	return s.engine.Rank(events, userID)
}

// ChangeUsername renames the user and rewrites the denormalized
// snapshot on their historical events. The cascade is best-effort: a
// partial failure leaves stale snapshots, which the caller is not told
// about, and ranking stays correct because ordering never reads the
// username.
func (s *ScoreService) ChangeUsername(ctx context.Context, userID uuid.UUID, username string) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrInvalidUsername
	}

	existing, err := s.users.FindUserByUsername(ctx, username)
	if err != nil && !domain.IsNotFoundError(err) {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if existing != nil && existing.ID != userID {
		return nil, domain.ErrUsernameTaken
	}

	user, err := s.users.UpdateUsername(ctx, userID, username)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	rewritten, err := s.ledger.RewriteUsername(ctx, userID, username)
	if err != nil {
		s.logger.Warn("username cascade failed, ledger snapshots are stale",
			"user_id", userID,
			"username", username,
			"error", err,
		)
	} else {
		s.logger.Info("rewrote username snapshots",
			"user_id", userID,
			"events", rewritten,
		)
	}

	return user, nil
}
