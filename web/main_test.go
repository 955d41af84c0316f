package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"pitchtrainer/database/postgres"
	"pitchtrainer/logger"
)

type stubSource struct {
	entries   []postgres.UserProgress
	err       error
	lastLimit int
}

func (s *stubSource) GetLeaderboard(ctx context.Context, limit int) ([]postgres.UserProgress, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func newTestServer(source *stubSource) *Web {
	logMiddleware := logger.Connect(logger.LoggerConnectProps{Production: false})
	return Connect(WebConnectProps{Logger: logMiddleware, DB: source})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubSource{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	source := &stubSource{entries: []postgres.UserProgress{
		{UserID: "2", CompletedRoles: []string{"dmitry"}, TotalScore: 95, BestScores: map[string]float64{"dmitry": 95}},
		{UserID: "1", CompletedRoles: []string{"dmitry"}, TotalScore: 90, BestScores: map[string]float64{"dmitry": 90}},
	}}
	srv := newTestServer(source)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/leaderboard", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if source.lastLimit != defaultLeaderboardLimit {
		t.Errorf("default limit = %d, want %d", source.lastLimit, defaultLeaderboardLimit)
	}

	var decoded []postgres.UserProgress
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].UserID != "2" {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestLeaderboardLimitParam(t *testing.T) {
	source := &stubSource{}
	srv := newTestServer(source)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/leaderboard?limit=3", nil))
	if rec.Code != 200 || source.lastLimit != 3 {
		t.Errorf("limit=3 not passed through: status=%d limit=%d", rec.Code, source.lastLimit)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/leaderboard?limit=5000", nil))
	if source.lastLimit != maxLeaderboardLimit {
		t.Errorf("oversized limit not clamped: %d", source.lastLimit)
	}

	for _, bad := range []string{"0", "-1", "abc"} {
		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/leaderboard?limit="+bad, nil))
		if rec.Code != 400 {
			t.Errorf("limit=%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestLeaderboardStorageError(t *testing.T) {
	srv := newTestServer(&stubSource{err: fmt.Errorf("connection refused")})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/leaderboard", nil))
	if rec.Code != 500 {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
