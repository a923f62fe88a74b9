package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/service"
)

// Handler provides HTTP handlers for the game API
type Handler struct {
	scores     *service.ScoreService
	auth       *service.AuthService
	verifier   TokenVerifier
	production bool
	logger     *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	scores *service.ScoreService,
	auth *service.AuthService,
	verifier TokenVerifier,
	production bool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		scores:     scores,
		auth:       auth,
		verifier:   verifier,
		production: production,
		logger:     logger,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Get("/me", h.GetCurrentUser)
				r.Put("/update", h.UpdateUsername)
			})
		})

		r.Route("/scores", func(r chi.Router) {
			// The leaderboard is public; everything else needs a token.
			r.Get("/leaderboard", h.GetLeaderboard)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Post("/", h.SubmitScore)
				r.Get("/user", h.GetUserScores)
				r.Get("/user/stats", h.GetUserStats)
				r.Get("/rank", h.GetUserRank)
			})
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}

// writeInternal reports a server-side failure, hiding the cause in
// production mode.
func (h *Handler) writeInternal(w http.ResponseWriter, err error) {
	body := map[string]string{"message": domain.ErrInternalError.Error()}
	if !h.production {
		body["error"] = err.Error()
	}
	h.writeJSON(w, http.StatusInternalServerError, body)
}

// writeServiceError maps a domain error to its HTTP status.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsConflictError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		h.writeInternal(w, err)
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles account creation
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "please provide username, email, and password")
		return
	}

	user, token, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if domain.IsValidationError(err) {
			h.writeError(w, http.StatusBadRequest, "please provide username, email, and password")
			return
		}
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles credential verification
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "please provide email and password")
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if err == domain.ErrInvalidCredentials {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// GetCurrentUser returns the authenticated user
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

type updateUsernameRequest struct {
	Username string `json:"username"`
}

// UpdateUsername renames the authenticated user
func (h *Handler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
		return
	}

	var req updateUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "please provide a username")
		return
	}

	user, err := h.scores.ChangeUsername(r.Context(), userID, req.Username)
	if err != nil {
		if domain.IsValidationError(err) {
			h.writeError(w, http.StatusBadRequest, "please provide a username")
			return
		}
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "username updated successfully",
		"user":    user,
	})
}

type submitScoreRequest struct {
	Score *int64 `json:"score"`
}

// SubmitScore records one completed game for the authenticated user
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
		return
	}

	var req submitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidScore.Error())
		return
	}

	event, err := h.scores.SubmitScore(r.Context(), userID, *req.Score)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"score":   event,
	})
}

// GetLeaderboard returns one page of the ranked leaderboard
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 10
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidPage.Error())
			return
		}
		page = p
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidPage.Error())
			return
		}
		limit = l
	}

	board, err := h.scores.GetLeaderboard(r.Context(), page, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scores":     board.Entries,
		"pagination": board.Pagination,
	})
}

// GetUserScores returns the authenticated user's recent scores
func (h *Handler) GetUserScores(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
		return
	}

	events, err := h.scores.GetUserScores(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []domain.ScoreEvent{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"scores": events})
}

// GetUserStats returns the authenticated user's aggregate statistics
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
		return
	}

	stats, err := h.scores.GetUserStats(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// GetUserRank returns the authenticated user's best-score rank
func (h *Handler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
		return
	}

	rank, err := h.scores.GetUserRank(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"rank": rank})
}
