package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/guard"
	"github.com/betpoints/platform/internal/infra"
	"github.com/betpoints/platform/internal/ledger"
	"github.com/betpoints/platform/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the coordinator needs.
type Store interface {
	repository.BalanceStore
	repository.BetRepository
}

// Notifier receives finalized bets. It must not block.
type Notifier interface {
	OnBetSettled(ctx context.Context, bet *domain.Bet)
}

// Invalidator drops cached match state.
type Invalidator interface {
	Invalidate(ctx context.Context, matchID uuid.UUID) error
}

// Config tunes the coordinator.
type Config struct {
	// StaleAfter is how long a SETTLING claim may sit before recovery
	// takes it over.
	StaleAfter  time.Duration
	BatchSize   int
	Concurrency int
	Backoff     guard.Backoff
}

// Deps wires a Coordinator. Matches must be the authoritative source,
// never the cache. Cache and Notifier are optional.
type Deps struct {
	Store       Store
	Matches     repository.MatchStore
	Cache       Invalidator
	Notifier    Notifier
	Progression ledger.Progression
	Metrics     *infra.Metrics
	Logger      *slog.Logger
	Now         func() time.Time
}

// Coordinator settles bets at most once. A bet is claimed PENDING ->
// SETTLING before anything is credited, and the terminal write is
// conditioned on that claim, so racing sweeps, match triggers and admin
// retries credit a bet exactly once between them.
type Coordinator struct {
	store    Store
	matches  repository.MatchStore
	cache    Invalidator
	notifier Notifier
	prog     ledger.Progression
	cfg      Config
	metrics  *infra.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config, d Deps) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Coordinator{
		store:    d.Store,
		matches:  d.Matches,
		cache:    d.Cache,
		notifier: d.Notifier,
		prog:     d.Progression,
		cfg:      cfg,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      d.Now,
	}
}

// Settle evaluates a bet against finished matches and books the result.
// It returns Deferred while any referenced match is unfinished or unknown,
// and AlreadySettled when the bet is terminal or another settler holds it.
// A TRANSIENT_FAILURE error leaves the bet SETTLING for recovery.
func (c *Coordinator) Settle(ctx context.Context, betID uuid.UUID) (*domain.SettleResult, error) {
	res, err := c.settle(ctx, betID)
	if err != nil {
		c.metrics.Settlements.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.Settlements.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func (c *Coordinator) settle(ctx context.Context, betID uuid.UUID) (*domain.SettleResult, error) {
	bet, err := c.store.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.Status.Terminal() {
		return &domain.SettleResult{Outcome: domain.OutcomeAlreadySettled, Bet: bet}, nil
	}

	snaps, reason, err := c.finishedSnapshots(ctx, bet)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &domain.SettleResult{Outcome: domain.OutcomeDeferred, Reason: reason}, nil
	}
	// Evaluate before claiming so a bad market fails without leaving a claim.
	if _, err := EvaluateBet(bet, snaps); err != nil {
		return nil, domain.ErrInternal("evaluate bet", err)
	}

	now := c.now()
	claimID := uuid.New()
	claimed, err := c.store.ClaimBet(ctx, betID, claimID, now, now.Add(-c.cfg.StaleAfter))
	if errors.Is(err, domain.ErrClaimConflict) {
		return c.alreadySettled(ctx, betID, "claimed by another settler")
	}
	if err != nil {
		return nil, fmt.Errorf("settle bet %s: claim: %w", betID, err)
	}

	// The claimed copy carries any external results recorded since the read.
	decisions, err := EvaluateBet(claimed, snaps)
	if err != nil {
		return nil, domain.ErrInternal("evaluate bet", err)
	}
	status, payout := Decide(claimed, decisions)
	settle := domain.BetSettlement{
		BetID:     claimed.ID,
		ClaimID:   claimID,
		Status:    status,
		Payout:    payout,
		SettledAt: now,
	}
	for _, d := range decisions {
		settle.Selections = append(settle.Selections, domain.SelectionSettlement{SelectionID: d.SelectionID, Result: d.Result})
		if d.Source == SourceVoidPolicy {
			c.logger.Warn("selection voided, no result available",
				"bet_id", claimed.ID, "selection_id", d.SelectionID, "market", d.Market)
		}
	}

	err = guard.Retry(ctx, c.cfg.Backoff, isVersionConflict, func(attempt int) error {
		if attempt > 1 {
			c.metrics.VersionConflicts.WithLabelValues("settle_bet").Inc()
		}
		return c.apply(ctx, claimed, settle)
	})
	switch {
	case errors.Is(err, domain.ErrClaimConflict):
		return c.alreadySettled(ctx, betID, "claim superseded")
	case errors.Is(err, guard.ErrRetriesExhausted):
		c.logger.Error("settlement retries exhausted, bet left SETTLING", "bet_id", betID, "error", err)
		return nil, domain.ErrTransientFailure("settle bet", err)
	case err != nil:
		return nil, fmt.Errorf("settle bet %s: %w", betID, err)
	}

	final := claimed.WithSettlement(settle)
	c.metrics.SettledBets.WithLabelValues(string(status)).Inc()
	c.logger.Info("bet settled",
		"bet_id", final.ID, "user_id", final.UserID, "status", status, "payout", payout)
	if c.notifier != nil {
		c.notifier.OnBetSettled(ctx, final)
	}
	return &domain.SettleResult{Outcome: domain.OutcomeSettled, Bet: final}, nil
}

// apply is one optimistic pass of the terminal write.
func (c *Coordinator) apply(ctx context.Context, bet *domain.Bet, settle domain.BetSettlement) error {
	bal, err := c.store.GetBalance(ctx, bet.UserID)
	if err != nil {
		return err
	}
	batch, levels, err := ledger.PostSettlement(*bal, bet, settle, c.prog)
	if err != nil {
		return err
	}
	if _, err := c.store.ApplyLedgerEntries(ctx, bet.UserID, bal.Version, *batch); err != nil {
		return err
	}
	for _, lvl := range levels {
		c.logger.Info("level up", "user_id", bet.UserID, "level", lvl.Level, "bet_id", bet.ID)
	}
	return nil
}

// finishedSnapshots loads fresh state for every match on the bet. A
// non-empty reason means settlement must wait.
func (c *Coordinator) finishedSnapshots(ctx context.Context, bet *domain.Bet) (map[uuid.UUID]*domain.MatchSnapshot, string, error) {
	snaps := make(map[uuid.UUID]*domain.MatchSnapshot, len(bet.Selections))
	for _, id := range bet.MatchIDs() {
		snap, err := c.matches.GetSnapshot(ctx, id)
		if errors.Is(err, domain.ErrMatchNotFound) {
			// Never guess a result for a match the source has lost.
			c.logger.Error("bet references unknown match, settlement deferred",
				"bet_id", bet.ID, "match_id", id, "alert", true)
			return nil, fmt.Sprintf("match %s not found", id), nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("settle bet %s: load match %s: %w", bet.ID, id, err)
		}
		if snap.Status != domain.MatchFinished {
			return nil, fmt.Sprintf("match %s is %s", id, snap.Status), nil
		}
		snaps[id] = snap
	}
	return snaps, "", nil
}

func (c *Coordinator) alreadySettled(ctx context.Context, betID uuid.UUID, reason string) (*domain.SettleResult, error) {
	res := &domain.SettleResult{Outcome: domain.OutcomeAlreadySettled, Reason: reason}
	if bet, err := c.store.GetBet(ctx, betID); err == nil {
		res.Bet = bet
	}
	return res, nil
}

// Report summarises a batch of settlement attempts.
type Report struct {
	Attempted      int `json:"attempted"`
	Settled        int `json:"settled"`
	Deferred       int `json:"deferred"`
	AlreadySettled int `json:"already_settled"`
	Failed         int `json:"failed"`
}

func (r *Report) add(res *domain.SettleResult, err error) {
	r.Attempted++
	if err != nil {
		r.Failed++
		return
	}
	switch res.Outcome {
	case domain.OutcomeSettled:
		r.Settled++
	case domain.OutcomeDeferred:
		r.Deferred++
	case domain.OutcomeAlreadySettled:
		r.AlreadySettled++
	}
}

// settleAll settles bets with bounded parallelism. Individual failures are
// logged and counted, never returned.
func (c *Coordinator) settleAll(ctx context.Context, bets []domain.Bet) Report {
	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, b := range bets {
		id := b.ID
		g.Go(func() error {
			res, err := c.Settle(gctx, id)
			if err != nil {
				c.logger.Warn("settlement attempt failed", "bet_id", id, "error", err)
			}
			mu.Lock()
			report.add(res, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// SweepPending retries pending bets, oldest first.
func (c *Coordinator) SweepPending(ctx context.Context) (Report, error) {
	bets, err := c.store.ListPending(ctx, c.cfg.BatchSize)
	if err != nil {
		return Report{}, fmt.Errorf("sweep pending: %w", err)
	}
	return c.settleAll(ctx, bets), nil
}

// RecoverStale completes bets whose settler disappeared mid-settlement.
// Settle re-claims them because their claim is older than StaleAfter.
func (c *Coordinator) RecoverStale(ctx context.Context) (Report, error) {
	bets, err := c.store.ListStaleSettling(ctx, c.now().Add(-c.cfg.StaleAfter), c.cfg.BatchSize)
	if err != nil {
		return Report{}, fmt.Errorf("recover stale: %w", err)
	}
	if len(bets) > 0 {
		c.logger.Warn("recovering stale settlement claims", "count", len(bets))
	}
	return c.settleAll(ctx, bets), nil
}

// Run sweeps pending bets and recovers stale claims every interval until
// ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	c.logger.Info("settlement sweeper started", "interval", interval, "batch_size", c.cfg.BatchSize)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("settlement sweeper stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	if report, err := c.RecoverStale(ctx); err != nil {
		c.logger.Error("stale claim recovery failed", "error", err)
	} else if report.Attempted > 0 {
		c.logger.Info("stale claims recovered", "settled", report.Settled, "failed", report.Failed)
	}
	if report, err := c.SweepPending(ctx); err != nil {
		c.logger.Error("pending sweep failed", "error", err)
	} else if report.Settled > 0 || report.Failed > 0 {
		c.logger.Info("pending sweep", "attempted", report.Attempted, "settled", report.Settled,
			"deferred", report.Deferred, "failed", report.Failed)
	}
}

// OnMatchFinished drops the cached snapshot and settles every pending bet
// on the match.
func (c *Coordinator) OnMatchFinished(ctx context.Context, matchID uuid.UUID) (Report, error) {
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, matchID); err != nil {
			c.logger.Warn("match cache invalidation failed", "match_id", matchID, "error", err)
		}
	}
	bets, err := c.store.ListPendingByMatch(ctx, matchID)
	if err != nil {
		return Report{}, fmt.Errorf("match finished %s: %w", matchID, err)
	}
	report := c.settleAll(ctx, bets)
	c.logger.Info("match finished settlement",
		"match_id", matchID, "attempted", report.Attempted, "settled", report.Settled, "deferred", report.Deferred)
	return report, nil
}

// ApplyMatchState records pushed match state and, once the match is
// FINISHED, settles the bets on it.
func (c *Coordinator) ApplyMatchState(ctx context.Context, snap *domain.MatchSnapshot) (Report, error) {
	if snap.ID == uuid.Nil || !snap.Status.Valid() {
		return Report{}, domain.ErrValidation("match state needs an id and a valid status")
	}
	if err := c.matches.UpsertSnapshot(ctx, snap); err != nil {
		return Report{}, fmt.Errorf("apply match state %s: %w", snap.ID, err)
	}
	if snap.Status != domain.MatchFinished {
		if c.cache != nil {
			if err := c.cache.Invalidate(ctx, snap.ID); err != nil {
				c.logger.Warn("match cache invalidation failed", "match_id", snap.ID, "error", err)
			}
		}
		return Report{}, nil
	}
	return c.OnMatchFinished(ctx, snap.ID)
}

// SetSelectionResult records an externally decided result, used for
// live-only markets the final score cannot settle.
func (c *Coordinator) SetSelectionResult(ctx context.Context, selectionID uuid.UUID, result domain.SelectionResult) error {
	switch result {
	case domain.ResultWon, domain.ResultLost, domain.ResultVoid:
	default:
		return domain.ErrValidation(fmt.Sprintf("result must be WON, LOST or VOID, got %q", result))
	}
	if err := c.store.SetExternalResult(ctx, selectionID, result); err != nil {
		return err
	}
	c.logger.Info("external selection result recorded", "selection_id", selectionID, "result", result)
	return nil
}

func isVersionConflict(err error) bool {
	return errors.Is(err, domain.ErrVersionConflict)
}
