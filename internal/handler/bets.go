package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/betpoints/platform/internal/auth"
	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/odds"
	"github.com/betpoints/platform/internal/policy"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Wagers is the placement side of the engine.
type Wagers interface {
	PlaceBet(ctx context.Context, p domain.PlaceBetParams) (*domain.Bet, error)
	Quote(ctx context.Context, userID, matchID uuid.UUID, market domain.MarketKey, boost domain.BoostTier) (*odds.Result, error)
	MyBets(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Bet, error)
	Limits(ctx context.Context, userID uuid.UUID, role string) (policy.Limits, error)
}

// Accounts opens and reads balances.
type Accounts interface {
	Open(ctx context.Context, userID uuid.UUID, vip bool) (*domain.Balance, error)
}

// BetHandler serves the player API.
type BetHandler struct {
	wagers   Wagers
	accounts Accounts
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(wagers Wagers, accounts Accounts) *BetHandler {
	return &BetHandler{wagers: wagers, accounts: accounts}
}

// PlaceBetResponse is returned for an accepted wager.
type PlaceBetResponse struct {
	BetID           uuid.UUID   `json:"bet_id"`
	EffectiveOdds   int64       `json:"effective_odds"`
	PotentialPayout int64       `json:"potential_payout"`
	Bet             *domain.Bet `json:"bet"`
}

// PlaceBet handles POST /bets.
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	userID, err := h.player(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req PlaceBetRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		RespondError(w, err)
		return
	}

	bet, err := h.wagers.PlaceBet(r.Context(), req.Params(userID, claims.Role))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, PlaceBetResponse{
		BetID:           bet.ID,
		EffectiveOdds:   bet.TotalOdds,
		PotentialPayout: bet.PotentialPayout,
		Bet:             bet,
	})
}

// MyBets handles GET /bets?limit=.
func (h *BetHandler) MyBets(w http.ResponseWriter, r *http.Request) {
	userID, err := h.player(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	bets, err := h.wagers.MyBets(r.Context(), userID, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	RespondJSON(w, http.StatusOK, bets)
}

// Quote handles GET /matches/{matchID}/odds?market=&line=&boost=.
func (h *BetHandler) Quote(w http.ResponseWriter, r *http.Request) {
	userID, err := h.player(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid match id"))
		return
	}

	q := r.URL.Query()
	market := domain.MarketKey{Kind: domain.MarketKind(q.Get("market"))}
	if market.Kind == "" {
		market.Kind = domain.MarketMatchResult
	}
	if v := q.Get("line"); v != "" {
		if market.Line, err = strconv.Atoi(v); err != nil {
			RespondError(w, domain.ErrValidation("line must be an integer in tenths"))
			return
		}
	}
	var boost int
	if v := q.Get("boost"); v != "" {
		if boost, err = strconv.Atoi(v); err != nil {
			RespondError(w, domain.ErrValidation("boost must be an integer tier"))
			return
		}
	}

	res, err := h.wagers.Quote(r.Context(), userID, matchID, market, domain.BoostTier(boost))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// Balance handles GET /balance. The first call opens the account.
func (h *BetHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := h.player(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	bal, err := h.accounts.Open(r.Context(), userID, auth.ClaimsFromContext(r.Context()).VIP)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, bal)
}

// Limits handles GET /limits.
func (h *BetHandler) Limits(w http.ResponseWriter, r *http.Request) {
	userID, err := h.player(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	limits, err := h.wagers.Limits(r.Context(), userID, auth.ClaimsFromContext(r.Context()).Role)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, limits)
}

func (h *BetHandler) player(r *http.Request) (uuid.UUID, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized("no player in context")
	}
	return id, nil
}
