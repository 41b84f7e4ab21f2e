package settlement

import (
	"testing"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finished(home, away int) *domain.MatchSnapshot {
	return &domain.MatchSnapshot{ID: uuid.New(), Status: domain.MatchFinished, Score: domain.Score{Home: home, Away: away}}
}

func sel(kind domain.MarketKind, line int, outcome domain.Outcome) domain.Selection {
	return domain.Selection{ID: uuid.New(), Market: domain.MarketKey{Kind: kind, Line: line}, Outcome: outcome, Odds: 200}
}

func TestEvaluateSelection(t *testing.T) {
	tests := []struct {
		name   string
		sel    domain.Selection
		at     domain.Score
		final  *domain.MatchSnapshot
		want   domain.SelectionResult
		source Source
	}{
		{"home win", sel(domain.MarketMatchResult, 0, domain.OutcomeHome), domain.Score{}, finished(2, 1), domain.ResultWon, SourceScore},
		{"home backed, away won", sel(domain.MarketMatchResult, 0, domain.OutcomeHome), domain.Score{}, finished(0, 1), domain.ResultLost, SourceScore},
		{"draw", sel(domain.MarketMatchResult, 0, domain.OutcomeDraw), domain.Score{}, finished(1, 1), domain.ResultWon, SourceScore},
		{"over 2.5", sel(domain.MarketTotalGoals, 25, domain.OutcomeOver), domain.Score{}, finished(2, 1), domain.ResultWon, SourceScore},
		{"under 2.5 lost", sel(domain.MarketTotalGoals, 25, domain.OutcomeUnder), domain.Score{}, finished(2, 1), domain.ResultLost, SourceScore},
		{"under 2.5", sel(domain.MarketTotalGoals, 25, domain.OutcomeUnder), domain.Score{}, finished(1, 0), domain.ResultWon, SourceScore},
		{"whole line push", sel(domain.MarketTotalGoals, 20, domain.OutcomeOver), domain.Score{}, finished(1, 1), domain.ResultVoid, SourceScore},
		{"both scored yes", sel(domain.MarketBothTeamsScore, 0, domain.OutcomeYes), domain.Score{}, finished(1, 1), domain.ResultWon, SourceScore},
		{"both scored no", sel(domain.MarketBothTeamsScore, 0, domain.OutcomeNo), domain.Score{}, finished(3, 0), domain.ResultWon, SourceScore},
		{"next goal home only", sel(domain.MarketNextGoal, 0, domain.OutcomeHome), domain.Score{Home: 1}, finished(3, 0), domain.ResultWon, SourceDerived},
		{"next goal away backed, home scored", sel(domain.MarketNextGoal, 0, domain.OutcomeAway), domain.Score{Home: 1}, finished(2, 0), domain.ResultLost, SourceDerived},
		{"next goal none", sel(domain.MarketNextGoal, 0, domain.OutcomeNone), domain.Score{Home: 1}, finished(1, 0), domain.ResultWon, SourceDerived},
		{"next goal none, both scored", sel(domain.MarketNextGoal, 0, domain.OutcomeNone), domain.Score{}, finished(1, 1), domain.ResultLost, SourceDerived},
		{"next goal order unknown", sel(domain.MarketNextGoal, 0, domain.OutcomeHome), domain.Score{}, finished(1, 1), domain.ResultVoid, SourceVoidPolicy},
		{"next corner", sel(domain.MarketNextCorner, 0, domain.OutcomeHome), domain.Score{}, finished(1, 1), domain.ResultVoid, SourceVoidPolicy},
		{"next card", sel(domain.MarketNextCard, 0, domain.OutcomeAway), domain.Score{}, finished(0, 0), domain.ResultVoid, SourceVoidPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.sel.ScoreAtPlacement = tt.at
			got, src, err := EvaluateSelection(tt.sel, tt.final)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.source, src)
		})
	}
}

func TestEvaluateSelection_ExternalResultWins(t *testing.T) {
	s := sel(domain.MarketNextCorner, 0, domain.OutcomeHome)
	s.ExternalResult = domain.ResultWon
	got, src, err := EvaluateSelection(s, finished(0, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultWon, got)
	assert.Equal(t, SourceExternal, src)

	s = sel(domain.MarketMatchResult, 0, domain.OutcomeHome)
	s.ExternalResult = domain.ResultVoid
	got, _, err = EvaluateSelection(s, finished(3, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultVoid, got)
}

func TestEvaluateSelection_Errors(t *testing.T) {
	_, _, err := EvaluateSelection(sel("PENALTIES", 0, domain.OutcomeHome), finished(1, 0))
	assert.ErrorContains(t, err, "unknown market")

	live := finished(1, 0)
	live.Status = domain.MatchLive
	_, _, err = EvaluateSelection(sel(domain.MarketMatchResult, 0, domain.OutcomeHome), live)
	assert.Error(t, err)
}

func TestDecide(t *testing.T) {
	bet := &domain.Bet{Stake: 50, Selections: []domain.Selection{
		{ID: uuid.New(), Odds: 200},
		{ID: uuid.New(), Odds: 300},
		{ID: uuid.New(), Odds: 150},
	}}
	decide := func(results ...domain.SelectionResult) (domain.BetStatus, int64) {
		ds := make([]Decision, len(results))
		for i, r := range results {
			ds[i] = Decision{SelectionID: bet.Selections[i].ID, Result: r}
		}
		return Decide(bet, ds)
	}

	status, payout := decide(domain.ResultWon, domain.ResultWon, domain.ResultWon)
	assert.Equal(t, domain.BetWon, status)
	assert.Equal(t, int64(450), payout)

	status, payout = decide(domain.ResultWon, domain.ResultLost, domain.ResultVoid)
	assert.Equal(t, domain.BetLost, status)
	assert.Zero(t, payout)

	status, payout = decide(domain.ResultWon, domain.ResultVoid, domain.ResultWon)
	assert.Equal(t, domain.BetWon, status)
	assert.Equal(t, int64(150), payout, "void leg drops out of the product")

	status, payout = decide(domain.ResultVoid, domain.ResultVoid, domain.ResultVoid)
	assert.Equal(t, domain.BetVoid, status)
	assert.Zero(t, payout)

	bet.BoostFactor = 11500
	status, payout = decide(domain.ResultWon, domain.ResultWon, domain.ResultWon)
	assert.Equal(t, domain.BetWon, status)
	assert.Equal(t, int64(517), payout)
}
