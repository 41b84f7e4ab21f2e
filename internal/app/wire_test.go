package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/betpoints/platform/internal/auth"
	"github.com/betpoints/platform/internal/content"
	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/guard"
	"github.com/betpoints/platform/internal/handler"
	"github.com/betpoints/platform/internal/infra"
	"github.com/betpoints/platform/internal/odds"
	"github.com/betpoints/platform/internal/policy"
	"github.com/betpoints/platform/internal/repository/memory"
	"github.com/betpoints/platform/internal/service"
	"github.com/betpoints/platform/internal/settlement"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	router  chi.Router
	jwt     *auth.JWTManager
	store   *memory.Store
	metrics *infra.Metrics
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := content.Default()
	require.NoError(t, err)
	engine, err := odds.NewEngine(c.Odds)
	require.NoError(t, err)
	validator, err := policy.NewValidator(c.Limits)
	require.NoError(t, err)
	metrics := infra.NewMetrics(prometheus.NewRegistry())

	store := memory.New()
	wagers := service.NewWagerService(service.WagerDeps{
		Store:   store,
		Matches: store,
		Engine:  engine,
		Limits:  validator,
		Content: c,
		Backoff: guard.Backoff{MaxAttempts: 5},
		Metrics: metrics,
		Logger:  logger,
	})
	accounts := service.NewAccountService(store, service.DefaultGrant, logger)
	coord := settlement.NewCoordinator(settlement.Config{Backoff: guard.Backoff{MaxAttempts: 5}}, settlement.Deps{
		Store:       store,
		Matches:     store,
		Progression: c.Progression,
		Metrics:     metrics,
		Logger:      logger,
	})

	jwtMgr := auth.NewJWTManager("test-secret-that-is-long-enough-for-hs256", time.Hour, time.Hour)
	return &stack{
		router: NewRouter(RouterDeps{
			JWTMgr:     jwtMgr,
			Logger:     logger,
			Metrics:    metrics,
			Wagers:     wagers,
			Accounts:   accounts,
			Settler:    coord,
			Health:     func(context.Context) error { return nil },
			CORSOrigin: "*",
		}),
		jwt:     jwtMgr,
		store:   store,
		metrics: metrics,
	}
}

func (s *stack) token(t *testing.T, realm auth.Realm, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := s.jwt.GenerateToken(realm, id, role, false)
	require.NoError(t, err)
	return tok
}

func (s *stack) call(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func TestRouter_Health(t *testing.T) {
	s := newStack(t)
	w := s.call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestRouter_CountsRequestsByRoute(t *testing.T) {
	s := newStack(t)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/healthz", "", nil).Code)
	}
	require.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, "/nope", "", nil).Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("GET", "/healthz", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestRouter_AuthGates(t *testing.T) {
	s := newStack(t)
	player := s.token(t, auth.RealmPlayer, uuid.New(), "")
	viewer := s.token(t, auth.RealmAdmin, uuid.New(), auth.RoleViewer)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"player api without token", http.MethodGet, "/api/v1/balance", "", http.StatusUnauthorized},
		{"admin token on player api", http.MethodGet, "/api/v1/balance", viewer, http.StatusUnauthorized},
		{"player token on admin api", http.MethodPost, "/admin/settlement/sweep", player, http.StatusUnauthorized},
		{"viewer cannot settle", http.MethodPost, "/admin/settlement/sweep", viewer, http.StatusForbidden},
		{"viewer can audit", http.MethodGet, "/admin/users/" + uuid.NewString() + "/audit", viewer, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.call(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestRouter_PlaceAndSettle(t *testing.T) {
	s := newStack(t)
	userID := uuid.New()
	player := s.token(t, auth.RealmPlayer, userID, "")
	admin := s.token(t, auth.RealmAdmin, uuid.New(), auth.RoleAdmin)
	matchID := uuid.New()

	// The operator publishes the fixture.
	w := s.call(t, http.MethodPut, "/admin/matches/"+matchID.String(), admin, handler.MatchStateRequest{
		HomeTeam: "HJK",
		AwayTeam: "KuPS",
		Status:   string(domain.MatchScheduled),
		Markets: []domain.MarketOdds{{
			MarketKey: domain.MarketKey{Kind: domain.MarketMatchResult},
			Odds:      map[domain.Outcome]int64{domain.OutcomeHome: 250, domain.OutcomeDraw: 320, domain.OutcomeAway: 280},
		}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// First balance read opens the account.
	w = s.call(t, http.MethodGet, "/api/v1/balance", player, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var bal domain.Balance
	require.NoError(t, json.NewDecoder(w.Body).Decode(&bal))
	assert.Equal(t, service.DefaultGrant.BetPoints, bal.BetPoints)

	w = s.call(t, http.MethodPost, "/api/v1/bets", player, handler.PlaceBetRequest{
		Kind:  string(domain.BetSingle),
		Stake: 100,
		Selections: []handler.SelectionRequest{
			{MatchID: matchID, Market: string(domain.MarketMatchResult), Outcome: string(domain.OutcomeHome)},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var placed handler.PlaceBetResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&placed))
	assert.Greater(t, placed.EffectiveOdds, int64(250), "pre-match enhancement applies")
	assert.Equal(t, placed.EffectiveOdds, placed.PotentialPayout)

	// Unfinished match defers.
	w = s.call(t, http.MethodPost, "/admin/bets/"+placed.BetID.String()+"/settle", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(domain.OutcomeDeferred))

	// Finishing the match settles every pending bet on it.
	w = s.call(t, http.MethodPut, "/admin/matches/"+matchID.String(), admin, handler.MatchStateRequest{
		HomeTeam: "HJK",
		AwayTeam: "KuPS",
		Status:   string(domain.MatchFinished),
		Home:     2,
		Away:     0,
		Minute:   90,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report settlement.Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, 1, report.Settled)

	w = s.call(t, http.MethodGet, "/api/v1/bets", player, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bets []domain.Bet
	require.NoError(t, json.NewDecoder(w.Body).Decode(&bets))
	require.Len(t, bets, 1)
	assert.Equal(t, domain.BetWon, bets[0].Status)
	assert.Equal(t, placed.PotentialPayout, bets[0].Payout)

	w = s.call(t, http.MethodGet, "/admin/users/"+userID.String()+"/audit", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"all_passed":true`)

	// A second admin settle is a no-op.
	w = s.call(t, http.MethodPost, "/admin/bets/"+placed.BetID.String()+"/settle", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(domain.OutcomeAlreadySettled))
}
