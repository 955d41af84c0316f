package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"pitchtrainer/database/postgres"
	"pitchtrainer/logger"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const defaultLeaderboardLimit = 10
const maxLeaderboardLimit = 100

// LeaderboardSource is the slice of the database the web surface needs.
type LeaderboardSource interface {
	GetLeaderboard(ctx context.Context, limit int) ([]postgres.UserProgress, error)
}

type WebConnectProps struct {
	Logger *logger.LogMiddleware
	DB     LeaderboardSource
}

type Web struct {
	logger *logger.LogMiddleware
	db     LeaderboardSource
	router chi.Router
}

func Connect(args WebConnectProps) *Web {
	srv := &Web{logger: args.Logger, db: args.DB}

	r := chi.NewRouter()
	r.Use(requestLoggerMiddleware(args.Logger))
	r.Get("/healthz", srv.handleHealthz)
	r.Get("/api/leaderboard", srv.handleLeaderboard)
	srv.router = r

	return srv
}

// Handler returns the routed handler wrapped with otelhttp so every request
// gets a span.
func (s *Web) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "web")
}

// Serve blocks on ListenAndServe. Run it in its own goroutine next to the
// Telegram listener.
func (s *Web) Serve(ctx context.Context, port string) error {
	s.logger.Logger(ctx).Info("[Web] Starting HTTP server", zap.String("port", port))
	return http.ListenAndServe(":"+port, s.Handler())
}

func (s *Web) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Web) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, `{"error":"limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	leaderboard, err := s.db.GetLeaderboard(ctx, limit)
	if err != nil {
		s.logger.Logger(ctx).Error("[Web] Could not load leaderboard", zap.Error(err))
		http.Error(w, `{"error":"try again later"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(leaderboard); err != nil {
		s.logger.Logger(ctx).Error("[Web] Could not encode leaderboard", zap.Error(err))
	}
}

func requestLoggerMiddleware(log *logger.LogMiddleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log.Logger(ctx).Info("Request Received", zap.String("url", r.URL.Path), zap.String("method", r.Method))
			next.ServeHTTP(w, r)
			log.Logger(ctx).Info("Request Completed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
		})
	}
}
