package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/betpoints/platform/internal/content"
	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/guard"
	"github.com/betpoints/platform/internal/infra"
	"github.com/betpoints/platform/internal/ledger"
	"github.com/betpoints/platform/internal/odds"
	"github.com/betpoints/platform/internal/policy"
	"github.com/betpoints/platform/internal/repository"
	"github.com/google/uuid"
)

// WagerStore is the persistence the placement coordinator needs. Its
// MatchSource is the record of truth for match status; WagerDeps.Matches
// may be a cache in front of it.
type WagerStore interface {
	repository.BalanceStore
	repository.BetRepository
	repository.MatchSource
}

// WagerDeps wires a WagerService.
type WagerDeps struct {
	Store   WagerStore
	Matches repository.MatchSource
	Engine  *odds.Engine
	Limits  *policy.Validator
	Content *content.Content
	Limiter *guard.RateLimiter
	Backoff guard.Backoff
	Metrics *infra.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// WagerService is the placement coordinator. Pricing, limits, the
// affordability check and the ledger posting all run against one balance
// read; the write is conditioned on that read's version, so any
// concurrent change to the user (including another placement that moves
// the rolling windows) makes the whole step retry.
type WagerService struct {
	store   WagerStore
	matches repository.MatchSource
	engine  *odds.Engine
	limits  *policy.Validator
	content *content.Content
	limiter *guard.RateLimiter
	backoff guard.Backoff
	metrics *infra.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewWagerService creates a WagerService.
func NewWagerService(d WagerDeps) *WagerService {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &WagerService{
		store:   d.Store,
		matches: d.Matches,
		engine:  d.Engine,
		limits:  d.Limits,
		content: d.Content,
		limiter: d.Limiter,
		backoff: d.Backoff,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     d.Now,
	}
}

// PlaceBet accepts or rejects a wager. Rejections leave no trace.
func (s *WagerService) PlaceBet(ctx context.Context, p domain.PlaceBetParams) (*domain.Bet, error) {
	bet, err := s.placeBet(ctx, p)
	if err != nil {
		s.metrics.PlacementRejected.WithLabelValues(errorCode(err)).Inc()
		return nil, err
	}
	s.metrics.BetsPlaced.WithLabelValues(string(bet.Kind)).Inc()
	s.logger.Info("bet placed",
		"bet_id", bet.ID, "user_id", bet.UserID, "kind", bet.Kind,
		"stake", bet.Stake, "total_odds", bet.TotalOdds, "boost", bet.Boost)
	return bet, nil
}

func (s *WagerService) placeBet(ctx context.Context, p domain.PlaceBetParams) (*domain.Bet, error) {
	if s.limiter != nil {
		if res := s.limiter.Check(ctx, p.UserID.String()); !res.Allowed {
			return nil, domain.ErrRateLimited(res.Reason)
		}
	}
	if err := domain.ValidatePlaceBet(p); err != nil {
		return nil, err
	}

	// Cheap rejection from the cache. attempt re-checks against the store.
	if _, err := s.bettableSnapshots(ctx, s.matches, p); err != nil {
		return nil, err
	}

	var boost *odds.BoostTier
	if p.Boost > 0 {
		tier, err := s.engine.BoostTier(p.Boost)
		if err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		boost = &tier
	}

	var placed *domain.Bet
	err := guard.Retry(ctx, s.backoff, isVersionConflict, func(attempt int) error {
		if attempt > 1 {
			s.metrics.VersionConflicts.WithLabelValues("place_bet").Inc()
			s.logger.Debug("retrying placement", "user_id", p.UserID, "attempt", attempt)
		}
		bet, err := s.attempt(ctx, p, boost)
		if err != nil {
			return err
		}
		placed = bet
		return nil
	})
	if errors.Is(err, guard.ErrRetriesExhausted) {
		return nil, domain.ErrTransientFailure("place bet", err)
	}
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// bettableSnapshots loads every referenced match from src and checks it is
// open for this kind of bet.
func (s *WagerService) bettableSnapshots(ctx context.Context, src repository.MatchSource, p domain.PlaceBetParams) (map[uuid.UUID]*domain.MatchSnapshot, error) {
	want := p.Kind.RequiredMatchStatus()
	snaps := make(map[uuid.UUID]*domain.MatchSnapshot, len(p.Selections))
	for _, sel := range p.Selections {
		if _, ok := snaps[sel.MatchID]; ok {
			continue
		}
		snap, err := src.GetSnapshot(ctx, sel.MatchID)
		if errors.Is(err, domain.ErrMatchNotFound) {
			return nil, domain.ErrNotFound("match", sel.MatchID.String())
		}
		if err != nil {
			return nil, fmt.Errorf("place bet: load match %s: %w", sel.MatchID, err)
		}
		if snap.Status != want {
			return nil, domain.ErrInvalidMatchState(sel.MatchID.String(), snap.Status, p.Kind)
		}
		snaps[sel.MatchID] = snap
	}
	return snaps, nil
}

// attempt is one optimistic pass: read, price, validate, post, commit.
// Match status and prices come from the store, never the cache, so a match
// that kicked off or finished since the cache was filled is refused.
func (s *WagerService) attempt(ctx context.Context, p domain.PlaceBetParams, boost *odds.BoostTier) (*domain.Bet, error) {
	now := s.now()
	snaps, err := s.bettableSnapshots(ctx, s.store, p)
	if err != nil {
		return nil, err
	}
	bal, err := s.store.GetBalance(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if boost != nil {
		if err := policy.CheckBoost(*boost, bal.Level); err != nil {
			return nil, err
		}
	}

	bet := &domain.Bet{
		ID:       uuid.New(),
		UserID:   p.UserID,
		Kind:     p.Kind,
		Stake:    p.Stake,
		Status:   domain.BetPending,
		PlacedAt: now,
	}
	boostFactor := int64(0)
	if boost != nil {
		bet.Boost, bet.BoostFactor, bet.DiamondCost = boost.Tier, boost.Factor, boost.DiamondCost
		boostFactor = boost.Factor
	}

	legs := make([]int64, 0, len(p.Selections))
	for _, req := range p.Selections {
		snap := snaps[req.MatchID]
		quote, err := s.engine.ComputeOutcome(req.Market, req.Outcome, snap.BaseOdds[req.Market], s.pricingContext(bal, snap, now))
		if err != nil {
			return nil, err
		}
		bet.Selections = append(bet.Selections, domain.Selection{
			ID:               uuid.New(),
			BetID:            bet.ID,
			MatchID:          req.MatchID,
			Market:           req.Market,
			Outcome:          req.Outcome,
			Odds:             quote.Odds,
			OddsClamped:      quote.Clamped,
			ScoreAtPlacement: snap.Score,
			Result:           domain.ResultPending,
		})
		legs = append(legs, quote.Odds)
	}
	bet.TotalOdds = odds.TotalOdds(legs, boostFactor)
	bet.PotentialPayout = odds.Payout(bet.Stake, legs, boostFactor)

	history, err := s.store.ListPlacedSince(ctx, p.UserID, now.Add(-policy.WeeklyWindow))
	if err != nil {
		return nil, fmt.Errorf("place bet: load history: %w", err)
	}
	subject := policy.Subject{Level: bal.Level, VIP: bal.VIP, Role: p.Role}
	candidate := policy.Candidate{
		Stake:           bet.Stake,
		Selections:      len(bet.Selections),
		TotalOdds:       bet.TotalOdds,
		PotentialPayout: bet.PotentialPayout,
	}
	if err := s.limits.Validate(subject, candidate, policy.WindowAt(now, history)); err != nil {
		return nil, err
	}
	if err := policy.CheckAffordability(bal, bet.Stake, bet.DiamondCost); err != nil {
		return nil, err
	}

	batch, levels, err := ledger.PostPlacement(*bal, bet, s.content.Progression, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.ApplyLedgerEntries(ctx, p.UserID, bal.Version, *batch); err != nil {
		if errors.Is(err, domain.ErrNegativeBalance) {
			return nil, domain.ErrInsufficientBalance(domain.CurrencyBetPoints)
		}
		return nil, err
	}
	for _, lvl := range levels {
		s.logger.Info("level up", "user_id", p.UserID, "level", lvl.Level, "bet_id", bet.ID)
	}
	return bet, nil
}

// pricingContext builds the odds context for one user and match. Boosts
// are applied at bet level, so selections are priced without one.
func (s *WagerService) pricingContext(bal *domain.Balance, snap *domain.MatchSnapshot, now time.Time) odds.Context {
	ctx := odds.Context{
		Derby:      snap.Derby,
		Featured:   snap.Featured,
		FirstBet:   bal.Stats.BetsPlaced == 0,
		UserLevel:  bal.Level,
		Now:        now,
		Promotions: s.content.ActivePromotions(now),
	}
	if snap.Status == domain.MatchLive {
		ctx.Live = &odds.LiveState{Minute: snap.Minute, Score: snap.Score}
	}
	return ctx
}

// Quote prices a market for a user as PlaceBet would, with the boost
// folded into each outcome for display.
func (s *WagerService) Quote(ctx context.Context, userID, matchID uuid.UUID, market domain.MarketKey, boost domain.BoostTier) (*odds.Result, error) {
	if _, err := market.Kind.Spec(); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	snap, err := s.matches.GetSnapshot(ctx, matchID)
	if errors.Is(err, domain.ErrMatchNotFound) {
		return nil, domain.ErrNotFound("match", matchID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("quote: load match %s: %w", matchID, err)
	}
	if snap.Status == domain.MatchFinished {
		return nil, domain.ErrInvalidMatchState(matchID.String(), snap.Status, domain.BetSingle)
	}

	bal, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if boost > 0 {
		tier, err := s.engine.BoostTier(boost)
		if err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		if err := policy.CheckBoost(tier, bal.Level); err != nil {
			return nil, err
		}
	}

	pc := s.pricingContext(bal, snap, s.now())
	pc.Boost = boost
	return s.engine.ComputeOdds(market, snap.BaseOdds[market], pc)
}

// MyBets returns a user's bets, newest first.
func (s *WagerService) MyBets(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Bet, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByUser(ctx, userID, limit)
}

// Limits returns the envelope that currently applies to a user.
func (s *WagerService) Limits(ctx context.Context, userID uuid.UUID, role string) (policy.Limits, error) {
	bal, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return policy.Limits{}, err
	}
	return s.limits.Limits(policy.Subject{Level: bal.Level, VIP: bal.VIP, Role: role}), nil
}

func isVersionConflict(err error) bool {
	return errors.Is(err, domain.ErrVersionConflict)
}

func errorCode(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return domain.CodeInternal
}
