package settlement

import (
	"fmt"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/odds"
	"github.com/google/uuid"
)

// Source says how a selection result was decided.
type Source string

const (
	SourceExternal Source = "external"
	SourceScore    Source = "final_score"
	SourceDerived  Source = "derived"
	// SourceVoidPolicy marks a live-only market the final score cannot
	// decide and nobody supplied a result for.
	SourceVoidPolicy Source = "void_policy"
)

// Decision is the evaluated result of one selection.
type Decision struct {
	SelectionID uuid.UUID
	Market      domain.MarketKind
	Result      domain.SelectionResult
	Source      Source
}

// EvaluateSelection decides a selection against a finished match. An
// external result always wins. Unknown markets are an error.
func EvaluateSelection(sel domain.Selection, snap *domain.MatchSnapshot) (domain.SelectionResult, Source, error) {
	if snap.Status != domain.MatchFinished {
		return "", "", fmt.Errorf("evaluate selection %s: match %s is %s", sel.ID, snap.ID, snap.Status)
	}
	switch sel.ExternalResult {
	case domain.ResultWon, domain.ResultLost, domain.ResultVoid:
		return sel.ExternalResult, SourceExternal, nil
	}

	final := snap.Score
	switch sel.Market.Kind {
	case domain.MarketMatchResult:
		return matchResult(final, sel.Outcome), SourceScore, nil

	case domain.MarketTotalGoals:
		goals := final.Total() * 10
		switch {
		case goals == sel.Market.Line:
			// Whole-goal line landed exactly: stake is returned.
			return domain.ResultVoid, SourceScore, nil
		case goals > sel.Market.Line:
			return won(sel.Outcome == domain.OutcomeOver), SourceScore, nil
		default:
			return won(sel.Outcome == domain.OutcomeUnder), SourceScore, nil
		}

	case domain.MarketBothTeamsScore:
		both := final.Home > 0 && final.Away > 0
		return won(both == (sel.Outcome == domain.OutcomeYes)), SourceScore, nil

	case domain.MarketNextGoal:
		return nextGoal(sel.ScoreAtPlacement, final, sel.Outcome)

	case domain.MarketNextCorner, domain.MarketNextCard:
		return domain.ResultVoid, SourceVoidPolicy, nil
	}
	return "", "", fmt.Errorf("evaluate selection %s: unknown market %q", sel.ID, sel.Market.Kind)
}

func matchResult(s domain.Score, outcome domain.Outcome) domain.SelectionResult {
	var actual domain.Outcome
	switch {
	case s.Home > s.Away:
		actual = domain.OutcomeHome
	case s.Away > s.Home:
		actual = domain.OutcomeAway
	default:
		actual = domain.OutcomeDraw
	}
	return won(outcome == actual)
}

// nextGoal compares the final score with the score frozen at placement.
// If only one side scored since, that side scored next. If both did, the
// order is unknown and only NONE can be decided.
func nextGoal(at, final domain.Score, outcome domain.Outcome) (domain.SelectionResult, Source, error) {
	homeScored := final.Home > at.Home
	awayScored := final.Away > at.Away
	if final.Home < at.Home || final.Away < at.Away {
		return domain.ResultVoid, SourceVoidPolicy, nil
	}
	switch {
	case !homeScored && !awayScored:
		return won(outcome == domain.OutcomeNone), SourceDerived, nil
	case homeScored && !awayScored:
		return won(outcome == domain.OutcomeHome), SourceDerived, nil
	case awayScored && !homeScored:
		return won(outcome == domain.OutcomeAway), SourceDerived, nil
	}
	if outcome == domain.OutcomeNone {
		return domain.ResultLost, SourceDerived, nil
	}
	return domain.ResultVoid, SourceVoidPolicy, nil
}

func won(ok bool) domain.SelectionResult {
	if ok {
		return domain.ResultWon
	}
	return domain.ResultLost
}

// EvaluateBet decides every selection of a bet. snaps must hold a
// FINISHED snapshot for each referenced match.
func EvaluateBet(bet *domain.Bet, snaps map[uuid.UUID]*domain.MatchSnapshot) ([]Decision, error) {
	out := make([]Decision, 0, len(bet.Selections))
	for _, sel := range bet.Selections {
		snap, ok := snaps[sel.MatchID]
		if !ok {
			return nil, fmt.Errorf("evaluate bet %s: no snapshot for match %s", bet.ID, sel.MatchID)
		}
		res, src, err := EvaluateSelection(sel, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, Decision{SelectionID: sel.ID, Market: sel.Market.Kind, Result: res, Source: src})
	}
	return out, nil
}

// Decide folds selection results into the bet status and payout. Any LOST
// leg loses the bet. VOID legs drop out of the odds product, and a bet
// whose legs are all VOID is itself VOID.
func Decide(bet *domain.Bet, decisions []Decision) (domain.BetStatus, int64) {
	results := make(map[uuid.UUID]domain.SelectionResult, len(decisions))
	for _, d := range decisions {
		results[d.SelectionID] = d.Result
	}
	legs := make([]int64, 0, len(bet.Selections))
	for _, sel := range bet.Selections {
		switch results[sel.ID] {
		case domain.ResultLost:
			return domain.BetLost, 0
		case domain.ResultWon:
			legs = append(legs, sel.Odds)
		}
	}
	if len(legs) == 0 {
		return domain.BetVoid, 0
	}
	return domain.BetWon, odds.Payout(bet.Stake, legs, bet.BoostFactor)
}
