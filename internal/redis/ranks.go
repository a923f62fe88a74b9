// Package redis keeps a ZSET mirror of each user's best score. The
// ledger remains the source of truth for the leaderboard; the mirror
// only serves the O(log n) per-user rank lookup and is rebuilt from
// the ledger by the reconcile worker.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/config"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
)

const rankKey = "counter:ranks"

// RankMirror provides Redis-backed best-score rank lookups
type RankMirror struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRankMirror creates a new rank mirror
func NewRankMirror(cfg *config.RedisConfig, logger *slog.Logger) (*RankMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RankMirror{
		client: client,
		logger: logger,
	}, nil
}

// NewRankMirrorWithClient wraps an existing client, for tests.
func NewRankMirrorWithClient(client *redis.Client, logger *slog.Logger) *RankMirror {
	return &RankMirror{client: client, logger: logger}
}

// Close closes the Redis connection
func (m *RankMirror) Close() error {
	return m.client.Close()
}

// SetScoreIfBetter records the score for the user only if it beats
// their current mirrored best. Returns whether the mirror changed.
func (m *RankMirror) SetScoreIfBetter(ctx context.Context, userID uuid.UUID, score int64) (bool, error) {
	member := userID.String()

	current, err := m.client.ZScore(ctx, rankKey, member).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("getting current score: %w", err)
	}

	if err == nil && float64(score) <= current {
		return false, nil
	}

	if err := m.client.ZAdd(ctx, rankKey, redis.Z{
		Score:  float64(score),
		Member: member,
	}).Err(); err != nil {
		return false, fmt.Errorf("setting score: %w", err)
	}
	return true, nil
}

// GetRank returns the user's 1-indexed rank by best score
func (m *RankMirror) GetRank(ctx context.Context, userID uuid.UUID) (int64, error) {
	rank, err := m.client.ZRevRank(ctx, rankKey, userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrRankNotFound
		}
		return 0, fmt.Errorf("getting rank: %w", err)
	}
	return rank + 1, nil
}

// GetCount returns the number of mirrored users
func (m *RankMirror) GetCount(ctx context.Context) (int64, error) {
	count, err := m.client.ZCard(ctx, rankKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// BatchSetScores replaces mirrored scores using pipelining
func (m *RankMirror) BatchSetScores(ctx context.Context, scores map[uuid.UUID]int64) error {
	if len(scores) == 0 {
		return nil
	}

	pipe := m.client.Pipeline()
	for userID, score := range scores {
		pipe.ZAdd(ctx, rankKey, redis.Z{
			Score:  float64(score),
			Member: userID.String(),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting scores: %w", err)
	}
	return nil
}

// Reset clears the mirror
func (m *RankMirror) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, rankKey).Err(); err != nil {
		return fmt.Errorf("resetting rank mirror: %w", err)
	}
	return nil
}
