package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/betpoints/platform/internal/auth"
	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/odds"
	"github.com/betpoints/platform/internal/policy"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWagers struct{ mock.Mock }

func (m *mockWagers) PlaceBet(ctx context.Context, p domain.PlaceBetParams) (*domain.Bet, error) {
	args := m.Called(ctx, p)
	bet, _ := args.Get(0).(*domain.Bet)
	return bet, args.Error(1)
}

func (m *mockWagers) Quote(ctx context.Context, userID, matchID uuid.UUID, market domain.MarketKey, boost domain.BoostTier) (*odds.Result, error) {
	args := m.Called(ctx, userID, matchID, market, boost)
	res, _ := args.Get(0).(*odds.Result)
	return res, args.Error(1)
}

func (m *mockWagers) MyBets(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Bet, error) {
	args := m.Called(ctx, userID, limit)
	bets, _ := args.Get(0).([]domain.Bet)
	return bets, args.Error(1)
}

func (m *mockWagers) Limits(ctx context.Context, userID uuid.UUID, role string) (policy.Limits, error) {
	args := m.Called(ctx, userID, role)
	return args.Get(0).(policy.Limits), args.Error(1)
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Open(ctx context.Context, userID uuid.UUID, vip bool) (*domain.Balance, error) {
	args := m.Called(ctx, userID, vip)
	bal, _ := args.Get(0).(*domain.Balance)
	return bal, args.Error(1)
}

type betFixture struct {
	wagers   *mockWagers
	accounts *mockAccounts
	router   chi.Router
	userID   uuid.UUID
}

func newBetFixture() *betFixture {
	f := &betFixture{wagers: &mockWagers{}, accounts: &mockAccounts{}, userID: uuid.New()}
	h := NewBetHandler(f.wagers, f.accounts)
	r := chi.NewRouter()
	r.Post("/bets", h.PlaceBet)
	r.Get("/bets", h.MyBets)
	r.Get("/matches/{matchID}/odds", h.Quote)
	r.Get("/balance", h.Balance)
	r.Get("/limits", h.Limits)
	f.router = r
	return f
}

func (f *betFixture) do(method, target, body string, claims *auth.Claims) *httptest.ResponseRecorder {
	var rdr *bytes.Buffer
	if body != "" {
		rdr = bytes.NewBufferString(body)
	} else {
		rdr = &bytes.Buffer{}
	}
	r := httptest.NewRequest(method, target, rdr)
	if claims != nil {
		r = r.WithContext(auth.WithClaims(r.Context(), claims))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func (f *betFixture) claims(role string, vip bool) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: f.userID.String()},
		Realm:            auth.RealmPlayer,
		Role:             role,
		VIP:              vip,
	}
}

func TestPlaceBet_Created(t *testing.T) {
	f := newBetFixture()
	matchID := uuid.New()
	bet := &domain.Bet{ID: uuid.New(), UserID: f.userID, TotalOdds: 260, PotentialPayout: 260, Status: domain.BetPending}

	f.wagers.On("PlaceBet", mock.Anything, mock.MatchedBy(func(p domain.PlaceBetParams) bool {
		return p.UserID == f.userID &&
			p.Role == auth.RoleUnlimited &&
			p.Kind == domain.BetSingle &&
			p.Stake == 100 &&
			p.Boost == 2 &&
			len(p.Selections) == 1 &&
			p.Selections[0].MatchID == matchID &&
			p.Selections[0].Market == domain.MarketKey{Kind: domain.MarketTotalGoals, Line: 25} &&
			p.Selections[0].Outcome == domain.OutcomeOver
	})).Return(bet, nil)

	body := `{"kind":"SINGLE","stake":100,"boost":2,"selections":[{"match_id":"` + matchID.String() + `","market":"TOTAL_GOALS","line":25,"outcome":"OVER"}]}`
	w := f.do(http.MethodPost, "/bets", body, f.claims(auth.RoleUnlimited, false))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp PlaceBetResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, bet.ID, resp.BetID)
	assert.Equal(t, int64(260), resp.EffectiveOdds)
	assert.Equal(t, int64(260), resp.PotentialPayout)
	f.wagers.AssertExpectations(t)
}

func TestPlaceBet_RejectsBadRequests(t *testing.T) {
	match := uuid.New().String()
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"kind":`},
		{"unknown field", `{"kind":"SINGLE","stake":10,"selections":[],"odds":500}`},
		{"no selections", `{"kind":"SINGLE","stake":10,"selections":[]}`},
		{"zero stake", `{"kind":"SINGLE","stake":0,"selections":[{"match_id":"` + match + `","market":"MATCH_RESULT","outcome":"HOME"}]}`},
		{"unknown kind", `{"kind":"SYSTEM","stake":10,"selections":[{"match_id":"` + match + `","market":"MATCH_RESULT","outcome":"HOME"}]}`},
		{"unknown market", `{"kind":"SINGLE","stake":10,"selections":[{"match_id":"` + match + `","market":"CORRECT_SCORE","outcome":"HOME"}]}`},
		{"missing match", `{"kind":"SINGLE","stake":10,"selections":[{"market":"MATCH_RESULT","outcome":"HOME"}]}`},
		{"boost tier out of range", `{"kind":"SINGLE","stake":10,"boost":4,"selections":[{"match_id":"` + match + `","market":"MATCH_RESULT","outcome":"HOME"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBetFixture()
			w := f.do(http.MethodPost, "/bets", tt.body, f.claims("", false))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), domain.CodeValidation)
			f.wagers.AssertNotCalled(t, "PlaceBet", mock.Anything, mock.Anything)
		})
	}
}

func TestPlaceBet_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"limit", domain.ErrLimitExceeded("max_stake", 500, 501), 422, "max_stake"},
		{"diamonds", domain.ErrInsufficientBalance(domain.CurrencyDiamonds), 422, "DIAMONDS"},
		{"finished match", domain.ErrInvalidMatchState("m", domain.MatchFinished, domain.BetSingle), 409, "FINISHED"},
		{"contention", domain.ErrTransientFailure("place bet", nil), 503, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBetFixture()
			f.wagers.On("PlaceBet", mock.Anything, mock.Anything).Return(nil, tt.err)

			body := `{"kind":"SINGLE","stake":10,"selections":[{"match_id":"` + uuid.New().String() + `","market":"MATCH_RESULT","outcome":"HOME"}]}`
			w := f.do(http.MethodPost, "/bets", body, f.claims("", false))

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorBody
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, resp.Reason)
			}
		})
	}
}

func TestPlaceBet_NoClaims(t *testing.T) {
	f := newBetFixture()
	w := f.do(http.MethodPost, "/bets", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMyBets(t *testing.T) {
	f := newBetFixture()
	f.wagers.On("MyBets", mock.Anything, f.userID, 10).Return(nil, nil)

	w := f.do(http.MethodGet, "/bets?limit=10", "", f.claims("", false))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestQuote(t *testing.T) {
	f := newBetFixture()
	matchID := uuid.New()
	market := domain.MarketKey{Kind: domain.MarketTotalGoals, Line: 25}
	res := &odds.Result{Market: market, Quotes: []odds.Quote{{Outcome: domain.OutcomeOver}}}
	f.wagers.On("Quote", mock.Anything, f.userID, matchID, market, domain.BoostTier(1)).Return(res, nil)

	w := f.do(http.MethodGet, "/matches/"+matchID.String()+"/odds?market=TOTAL_GOALS&line=25&boost=1", "", f.claims("", false))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f.wagers.AssertExpectations(t)
}

func TestQuote_DefaultsAndErrors(t *testing.T) {
	t.Run("market defaults to match result", func(t *testing.T) {
		f := newBetFixture()
		matchID := uuid.New()
		f.wagers.On("Quote", mock.Anything, f.userID, matchID, domain.MarketKey{Kind: domain.MarketMatchResult}, domain.BoostTier(0)).
			Return(&odds.Result{}, nil)

		w := f.do(http.MethodGet, "/matches/"+matchID.String()+"/odds", "", f.claims("", false))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bad match id", func(t *testing.T) {
		f := newBetFixture()
		w := f.do(http.MethodGet, "/matches/nope/odds", "", f.claims("", false))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad line", func(t *testing.T) {
		f := newBetFixture()
		w := f.do(http.MethodGet, "/matches/"+uuid.NewString()+"/odds?line=2.5", "", f.claims("", false))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBalance_OpensWithVIPClaim(t *testing.T) {
	f := newBetFixture()
	bal := domain.NewBalance(f.userID, 1000, 10, testTime)
	bal.VIP = true
	f.accounts.On("Open", mock.Anything, f.userID, true).Return(bal, nil)

	w := f.do(http.MethodGet, "/balance", "", f.claims("", true))

	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Balance
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, int64(1000), got.BetPoints)
	assert.True(t, got.VIP)
}

func TestLimits(t *testing.T) {
	f := newBetFixture()
	f.wagers.On("Limits", mock.Anything, f.userID, "").Return(policy.Limits{MaxStake: 500}, nil)

	w := f.do(http.MethodGet, "/limits", "", f.claims("", false))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"max_stake":500`)
}

var testTime = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
