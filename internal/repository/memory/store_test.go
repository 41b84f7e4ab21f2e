package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 18, 15, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) (*domain.Balance, *domain.Bet) {
	t.Helper()
	ctx := context.Background()
	bal := domain.NewBalance(uuid.New(), 1_000, 0, t0)
	require.NoError(t, s.CreateBalance(ctx, bal))

	bet := &domain.Bet{
		ID: uuid.New(), UserID: bal.UserID, Kind: domain.BetSingle, Stake: 100,
		TotalOdds: 250, PotentialPayout: 250, Status: domain.BetPending, PlacedAt: t0,
	}
	bet.Selections = []domain.Selection{{
		ID: uuid.New(), BetID: bet.ID, MatchID: uuid.New(),
		Market: domain.MarketKey{Kind: domain.MarketMatchResult}, Outcome: domain.OutcomeHome,
		Odds: 250, Result: domain.ResultPending,
	}}

	next := *bal
	next.BetPoints -= 100
	next.ActiveBetCount = 1
	placed, err := s.ApplyLedgerEntries(ctx, bal.UserID, bal.Version, domain.LedgerBatch{Balance: next, Place: bet})
	require.NoError(t, err)
	return placed, bet
}

func TestApplyLedgerEntries_BumpsVersion(t *testing.T) {
	s := New()
	bal, _ := seed(t, s)
	assert.Equal(t, int64(1), bal.Version)
	assert.Equal(t, int64(900), bal.BetPoints)
	assert.Equal(t, int64(1_000), bal.Opening.BetPoints)
}

func TestApplyLedgerEntries_StaleVersionConflicts(t *testing.T) {
	s := New()
	bal, _ := seed(t, s)
	next := *bal
	next.BetPoints = 1

	_, err := s.ApplyLedgerEntries(context.Background(), bal.UserID, bal.Version-1, domain.LedgerBatch{Balance: next})
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	got, err := s.GetBalance(context.Background(), bal.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.BetPoints)
}

func TestApplyLedgerEntries_RejectsNegativeBalance(t *testing.T) {
	s := New()
	bal, _ := seed(t, s)
	next := *bal
	next.Diamonds = -1

	_, err := s.ApplyLedgerEntries(context.Background(), bal.UserID, bal.Version, domain.LedgerBatch{Balance: next})
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)
}

func TestClaimBet_ExactlyOneWinner(t *testing.T) {
	s := New()
	_, bet := seed(t, s)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ClaimBet(context.Background(), bet.ID, uuid.New(), t0, time.Time{}); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrClaimConflict)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestClaimBet_StaleClaimCanBeTakenOver(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, bet := seed(t, s)

	first := uuid.New()
	_, err := s.ClaimBet(ctx, bet.ID, first, t0, time.Time{})
	require.NoError(t, err)

	_, err = s.ClaimBet(ctx, bet.ID, uuid.New(), t0.Add(time.Minute), t0)
	assert.ErrorIs(t, err, domain.ErrClaimConflict, "claim is not older than the cutoff")

	second := uuid.New()
	claimed, err := s.ClaimBet(ctx, bet.ID, second, t0.Add(10*time.Minute), t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, second, *claimed.ClaimID)

	stale, err := s.ListStaleSettling(ctx, t0.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestApplyLedgerEntries_SettleRequiresClaim(t *testing.T) {
	s := New()
	ctx := context.Background()
	bal, bet := seed(t, s)

	claimID := uuid.New()
	_, err := s.ClaimBet(ctx, bet.ID, claimID, t0, time.Time{})
	require.NoError(t, err)

	settle := &domain.BetSettlement{
		BetID: bet.ID, ClaimID: uuid.New(), Status: domain.BetLost, SettledAt: t0,
		Selections: []domain.SelectionSettlement{{SelectionID: bet.Selections[0].ID, Result: domain.ResultLost}},
	}
	next := *bal
	next.ActiveBetCount = 0
	_, err = s.ApplyLedgerEntries(ctx, bal.UserID, bal.Version, domain.LedgerBatch{Balance: next, Settle: settle})
	assert.ErrorIs(t, err, domain.ErrClaimConflict)

	settle.ClaimID = claimID
	_, err = s.ApplyLedgerEntries(ctx, bal.UserID, bal.Version, domain.LedgerBatch{Balance: next, Settle: settle})
	require.NoError(t, err)

	got, err := s.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetLost, got.Status)
	assert.Equal(t, domain.ResultLost, got.Selections[0].Result)
	require.NotNil(t, got.SettledAt)

	_, err = s.ApplyLedgerEntries(ctx, bal.UserID, bal.Version+1, domain.LedgerBatch{Balance: next, Settle: settle})
	assert.ErrorIs(t, err, domain.ErrClaimConflict, "terminal bets cannot be settled twice")
}

func TestSetExternalResult(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, bet := seed(t, s)

	require.NoError(t, s.SetExternalResult(ctx, bet.Selections[0].ID, domain.ResultWon))
	got, err := s.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultWon, got.Selections[0].ExternalResult)

	err = s.SetExternalResult(ctx, uuid.New(), domain.ResultWon)
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestListQueries(t *testing.T) {
	s := New()
	ctx := context.Background()
	bal, bet := seed(t, s)

	pending, err := s.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	byMatch, err := s.ListPendingByMatch(ctx, bet.Selections[0].MatchID)
	require.NoError(t, err)
	assert.Len(t, byMatch, 1)

	since, err := s.ListPlacedSince(ctx, bal.UserID, t0)
	require.NoError(t, err)
	assert.Empty(t, since, "the window is exclusive of its start")

	mine, err := s.ListByUser(ctx, bal.UserID, 10)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, bet := seed(t, s)

	got, err := s.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	got.Selections[0].Odds = 999

	again, err := s.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), again.Selections[0].Odds)

	match := &domain.MatchSnapshot{ID: uuid.New(), Status: domain.MatchScheduled, BaseOdds: map[domain.MarketKey]map[domain.Outcome]int64{
		{Kind: domain.MarketMatchResult}: {domain.OutcomeHome: 150},
	}}
	require.NoError(t, s.UpsertSnapshot(ctx, match))
	match.BaseOdds[domain.MarketKey{Kind: domain.MarketMatchResult}][domain.OutcomeHome] = 1

	snap, err := s.GetSnapshot(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), snap.BaseOdds[domain.MarketKey{Kind: domain.MarketMatchResult}][domain.OutcomeHome])

	_, err = s.GetSnapshot(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
}

func TestOutbox(t *testing.T) {
	s := New()
	ctx := context.Background()
	bal, _ := seed(t, s)

	evt := domain.NewLevelUpEvent(bal.UserID, 2, 100, 2, t0)
	_, err := s.ApplyLedgerEntries(ctx, bal.UserID, bal.Version, domain.LedgerBatch{Balance: *bal, Events: []domain.OutboxDraft{evt}})
	require.NoError(t, err)

	pending, err := s.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkPublished(ctx, []uuid.UUID{evt.EventID}))
	pending, err = s.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Len(t, s.Events(), 1)
}
