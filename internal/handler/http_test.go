package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/auth"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/config"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/handler"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/service"
)

// fakeStore backs the services with in-memory state for router tests.
type fakeStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*domain.User
	events []domain.ScoreEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *fakeStore) CreateUser(ctx context.Context, user *domain.User) error {
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

func (s *fakeStore) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
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

func (s *fakeStore) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
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

func (s *fakeStore) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*domain.User, error) {
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

func (s *fakeStore) UpdateHighScoreIfGreater(ctx context.Context, id uuid.UUID, score int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.HighScore >= score {
		return false, nil
	}
	u.HighScore = score
	return true, nil
}

func (s *fakeStore) AppendScore(ctx context.Context, event *domain.ScoreEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	return nil
}

func (s *fakeStore) AllEvents(ctx context.Context) ([]domain.ScoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.ScoreEvent(nil), s.events...), nil
}

func (s *fakeStore) EventsByUser(ctx context.Context, userID uuid.UUID) ([]domain.ScoreEvent, error) {
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

func (s *fakeStore) RecentEventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ScoreEvent, error) {
	events, _ := s.EventsByUser(ctx, userID)
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	// Newest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *fakeStore) RewriteUsername(ctx context.Context, userID uuid.UUID, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.events {
		if s.events[i].UserID == userID {
			s.events[i].Username = username
			n++
		}
	}
	return n, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore) {
	t.Helper()

	store := newFakeStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)

	cfg := &config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100}
	scores := service.NewScoreService(store, store, nil, cfg, logger)
	authSvc := service.NewAuthService(store, tokens, 4, logger)

	h := handler.NewHandler(scores, authSvc, tokens, false, logger)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	fields := make(map[string]json.RawMessage)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fields))
	return resp, fields
}

func registerUser(t *testing.T, srv *httptest.Server, username string) (token string, userID uuid.UUID) {
	t.Helper()

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, json.Unmarshal(fields["token"], &token))
	var user domain.User
	require.NoError(t, json.Unmarshal(fields["user"], &user))
	return token, user.ID
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestRegisterAndMe(t *testing.T) {
	srv, _ := newTestServer(t)
	token, userID := registerUser(t, srv, "alice")

	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user domain.User
	require.NoError(t, json.Unmarshal(fields["user"], &user))
	require.Equal(t, userID, user.ID)
	require.Equal(t, "alice", user.Username)
}

func TestRegisterMissingFields(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]string{
		"username": "alice",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	registerUser(t, srv, "alice")

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var msg string
	require.NoError(t, json.Unmarshal(fields["message"], &msg))
	require.Equal(t, domain.ErrInvalidCredentials.Error(), msg)
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/scores/"},
		{http.MethodGet, "/api/scores/user"},
		{http.MethodGet, "/api/scores/user/stats"},
		{http.MethodGet, "/api/scores/rank"},
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPut, "/api/auth/update"},
	}
	for _, tc := range cases {
		resp, _ := doJSON(t, tc.method, srv.URL+tc.path, "", map[string]int{"score": 1})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}

	// A garbage token is rejected the same way.
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/scores/rank", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitScore(t *testing.T) {
	srv, _ := newTestServer(t)
	token, userID := registerUser(t, srv, "alice")

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/scores/", token, map[string]int64{"score": 42})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var ok bool
	require.NoError(t, json.Unmarshal(fields["success"], &ok))
	require.True(t, ok)

	var event domain.ScoreEvent
	require.NoError(t, json.Unmarshal(fields["score"], &event))
	require.Equal(t, userID, event.UserID)
	require.Equal(t, int64(42), event.Score)
	require.Equal(t, "alice", event.Username)
}

func TestSubmitScoreMissingField(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := registerUser(t, srv, "alice")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scores/", token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitScoreNegative(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := registerUser(t, srv, "alice")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scores/", token, map[string]int64{"score": -5})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaderboardIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)
	aliceToken, aliceID := registerUser(t, srv, "alice")
	bobToken, bobID := registerUser(t, srv, "bob")

	for _, sub := range []struct {
		token string
		score int64
	}{
		{aliceToken, 50},
		{bobToken, 80},
		{bobToken, 30},
	} {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scores/", sub.token, map[string]int64{"score": sub.score})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/api/scores/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []domain.LeaderboardEntry
	require.NoError(t, json.Unmarshal(fields["scores"], &entries))
	require.Len(t, entries, 2)
	require.Equal(t, bobID, entries[0].UserID)
	require.Equal(t, int64(80), entries[0].Score)
	require.Equal(t, aliceID, entries[1].UserID)

	var pagination domain.Pagination
	require.NoError(t, json.Unmarshal(fields["pagination"], &pagination))
	require.Equal(t, int64(2), pagination.Total)
	require.Equal(t, 1, pagination.Pages)
}

func TestLeaderboardBadPage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/scores/leaderboard?page=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/scores/leaderboard?page=0", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaderboardPageBeyondLast(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := registerUser(t, srv, "alice")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scores/", token, map[string]int64{"score": 10})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/api/scores/leaderboard?page=99", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []domain.LeaderboardEntry
	require.NoError(t, json.Unmarshal(fields["scores"], &entries))
	require.Empty(t, entries)
}

func TestGetUserScoresEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := registerUser(t, srv, "alice")

	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/api/scores/user", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// An empty history serializes as [], not null.
	require.JSONEq(t, "[]", string(fields["scores"]))
}

func TestGetUserStats(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := registerUser(t, srv, "alice")

	for _, score := range []int64{5, 12, 9} {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scores/", token, map[string]int64{"score": score})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/api/scores/user/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats domain.UserStats
	require.NoError(t, json.Unmarshal(fields["stats"], &stats))
	require.Equal(t, int64(3), stats.GamesPlayed)
	require.Equal(t, int64(12), stats.HighScore)
	require.Equal(t, int64(9), stats.AverageScore)
	require.Equal(t, int64(26), stats.TotalScore)
}

func TestGetUserRank(t *testing.T) {
	srv, _ := newTestServer(t)
	aliceToken, _ := registerUser(t, srv, "alice")
	bobToken, _ := registerUser(t, srv, "bob")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scores/", aliceToken, map[string]int64{"score": 50})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/scores/", bobToken, map[string]int64{"score": 80})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/api/scores/rank", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rank int64
	require.NoError(t, json.Unmarshal(fields["rank"], &rank))
	require.Equal(t, int64(1), rank)
}

func TestUpdateUsername(t *testing.T) {
	srv, store := newTestServer(t)
	token, userID := registerUser(t, srv, "alice")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scores/", token, map[string]int64{"score": 10})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, fields := doJSON(t, http.MethodPut, srv.URL+"/api/auth/update", token, map[string]string{"username": "alice2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user domain.User
	require.NoError(t, json.Unmarshal(fields["user"], &user))
	require.Equal(t, "alice2", user.Username)

	events, err := store.EventsByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, "alice2", events[0].Username)
}

func TestUpdateUsernameConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := registerUser(t, srv, "alice")
	registerUser(t, srv, "bob")

	resp, fields := doJSON(t, http.MethodPut, srv.URL+"/api/auth/update", token, map[string]string{"username": "bob"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var msg string
	require.NoError(t, json.Unmarshal(fields["message"], &msg))
	require.Equal(t, domain.ErrUsernameTaken.Error(), msg)
}
