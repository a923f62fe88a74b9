package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/google/uuid"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/config"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/redis"
)

// memStore is an in-memory identity store and score ledger for tests.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*domain.User
	events      []domain.ScoreEvent
	failCascade bool
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *memStore) addUser(username string, highScore int64) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &domain.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     username + "@example.com",
		HighScore: highScore,
		Role:      domain.RoleUser,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.users[u.ID] = u
	copied := *u
	return &copied
}

func (s *memStore) addEvent(userID uuid.UUID, username string, score int64, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, domain.ScoreEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  username,
		Score:     score,
		GameType:  domain.GameTypeCounter,
		CreatedAt: createdAt,
	})
}

func (s *memStore) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return domain.ErrUserExists
		}
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memStore) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memStore) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memStore) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	for _, other := range s.users {
		if other.ID != id && other.Username == username {
			return nil, domain.ErrUsernameTaken
		}
	}
	u.Username = username
	u.UpdatedAt = time.Now()
	copied := *u
	return &copied, nil
}

func (s *memStore) UpdateHighScoreIfGreater(ctx context.Context, id uuid.UUID, score int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.HighScore >= score {
		return false, nil
	}
	u.HighScore = score
	return true, nil
}

func (s *memStore) AppendScore(ctx context.Context, event *domain.ScoreEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	return nil
}

func (s *memStore) AllEvents(ctx context.Context) ([]domain.ScoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.ScoreEvent(nil), s.events...), nil
}

func (s *memStore) EventsByUser(ctx context.Context, userID uuid.UUID) ([]domain.ScoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []domain.ScoreEvent
	for _, ev := range s.events {
		if ev.UserID == userID {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (s *memStore) RecentEventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ScoreEvent, error) {
	events, _ := s.EventsByUser(ctx, userID)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *memStore) RewriteUsername(ctx context.Context, userID uuid.UUID, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCascade {
		return 0, errors.New("ledger unavailable")
	}

	var n int64
	for i := range s.events {
		if s.events[i].UserID == userID {
			s.events[i].Username = username
			n++
		}
	}
	return n, nil
}

func (s *memStore) BestScores(ctx context.Context) (map[uuid.UUID]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := make(map[uuid.UUID]int64)
	for _, ev := range s.events {
		if cur, ok := best[ev.UserID]; !ok || ev.Score > cur {
			best[ev.UserID] = ev.Score
		}
	}
	return best, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLeaderboardConfig() *config.LeaderboardConfig {
	return &config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100}
}

func testMirror(t *testing.T) *redis.RankMirror {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return redis.NewRankMirrorWithClient(client, testLogger())
}
