package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
)

const scoreColumns = `id, user_id, username, score, game_type, created_at`

func collectEvents(rows pgx.Rows) ([]domain.ScoreEvent, error) {
	defer rows.Close()

	var events []domain.ScoreEvent
	for rows.Next() {
		var ev domain.ScoreEvent
		err := rows.Scan(
			&ev.ID,
			&ev.UserID,
			&ev.Username,
			&ev.Score,
			&ev.GameType,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning score event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// AppendScore writes one score event to the ledger. Events are
// insert-only; nothing ever updates a row except the username rewrite
// on rename.
func (r *Repository) AppendScore(ctx context.Context, event *domain.ScoreEvent) error {
	query := `
		INSERT INTO score_events (id, user_id, username, score, game_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.Username,
		event.Score,
		event.GameType,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending score event: %w", err)
	}
	return nil
}

// AllEvents retrieves the full ledger for ranking aggregation
func (r *Repository) AllEvents(ctx context.Context) ([]domain.ScoreEvent, error) {
	query := `SELECT ` + scoreColumns + ` FROM score_events ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing score events: %w", err)
	}
	return collectEvents(rows)
}

// EventsByUser retrieves all of one user's events
func (r *Repository) EventsByUser(ctx context.Context, userID uuid.UUID) ([]domain.ScoreEvent, error) {
	query := `SELECT ` + scoreColumns + ` FROM score_events WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user score events: %w", err)
	}
	return collectEvents(rows)
}

// RecentEventsByUser retrieves the user's newest events, most recent first
func (r *Repository) RecentEventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ScoreEvent, error) {
	query := `
		SELECT ` + scoreColumns + ` FROM score_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent score events: %w", err)
	}
	return collectEvents(rows)
}

// RewriteUsername updates the denormalized username snapshot on every
// event owned by the user. Returns the number of rewritten rows.
func (r *Repository) RewriteUsername(ctx context.Context, userID uuid.UUID, username string) (int64, error) {
	query := `UPDATE score_events SET username = $2 WHERE user_id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, username)
	if err != nil {
		return 0, fmt.Errorf("rewriting username snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BestScores retrieves each user's best score, for rank mirror rebuilds
func (r *Repository) BestScores(ctx context.Context) (map[uuid.UUID]int64, error) {
	query := `SELECT user_id, MAX(score) FROM score_events GROUP BY user_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing best scores: %w", err)
	}
	defer rows.Close()

	best := make(map[uuid.UUID]int64)
	for rows.Next() {
		var userID uuid.UUID
		var score int64
		if err := rows.Scan(&userID, &score); err != nil {
			return nil, fmt.Errorf("scanning best score: %w", err)
		}
		best[userID] = score
	}
	return best, rows.Err()
}
