package odds

import (
	"fmt"

	"github.com/betpoints/platform/internal/domain"
)

const (
	minProbBP int64 = 100
	maxProbBP int64 = 9900
)

// liveProbability estimates the chance of outcome in basis points from the
// clock, the score and the derby flag. It is recomputed on every call.
func (e *Engine) liveProbability(market domain.MarketKey, outcome domain.Outcome, st LiveState, derby bool) (int64, error) {
	m := e.cfg.Live
	minute := st.Minute
	if minute < 0 {
		minute = 0
	}
	if minute > m.MatchMinutes {
		minute = m.MatchMinutes
	}
	remaining := int64(m.MatchMinutes-minute) * One / int64(m.MatchMinutes)
	elapsed := One - remaining

	goal := m.GoalChanceBP * remaining / One
	if derby {
		goal = goal * m.DerbyIntensityBP / One
	}
	goal = bound(goal, minProbBP, maxProbBP)

	var p int64
	switch market.Kind {
	case domain.MarketNextGoal:
		switch outcome {
		case domain.OutcomeHome, domain.OutcomeAway:
			// The trailing side presses, so its share of the next goal
			// grows with the deficit.
			share := bound(One/2-m.TrailingStepBP*int64(st.Score.DiffFor(outcome)), m.ShareFloorBP, m.ShareCeilBP)
			p = goal * share / One
		case domain.OutcomeNone:
			p = One - goal
		default:
			return 0, unpriced(market, outcome)
		}

	case domain.MarketMatchResult:
		diff := st.Score.Home - st.Score.Away
		if diff == 0 {
			draw := bound(One-goal, 2500, maxProbBP)
			switch outcome {
			case domain.OutcomeDraw:
				p = draw
			case domain.OutcomeHome, domain.OutcomeAway:
				p = (One - draw) / 2
			default:
				return 0, unpriced(market, outcome)
			}
			break
		}
		lead := diff
		leader := domain.OutcomeHome
		if diff < 0 {
			lead, leader = -diff, domain.OutcomeAway
		}
		win := bound(One/2+m.LeadWinStepBP*int64(lead-1)+elapsed*4/10, One/2, maxProbBP)
		rest := One - win
		switch outcome {
		case leader:
			p = win
		case domain.OutcomeDraw:
			p = rest * 6 / 10
		case domain.OutcomeHome, domain.OutcomeAway:
			p = rest * 4 / 10
		default:
			return 0, unpriced(market, outcome)
		}

	case domain.MarketTotalGoals:
		needed := int64(market.Line/10+1) - int64(st.Score.Total())
		over := maxProbBP
		for k := int64(0); k < needed; k++ {
			if k == 0 {
				over = goal
				continue
			}
			over = over * goal / One * m.FollowOnGoalBP / One
		}
		switch outcome {
		case domain.OutcomeOver:
			p = over
		case domain.OutcomeUnder:
			p = One - over
		default:
			return 0, unpriced(market, outcome)
		}

	case domain.MarketNextCorner:
		if outcome != domain.OutcomeHome && outcome != domain.OutcomeAway {
			return 0, unpriced(market, outcome)
		}
		p = bound(One/2-m.CornerStepBP*int64(st.Score.DiffFor(outcome)), m.ShareFloorBP, m.ShareCeilBP)

	case domain.MarketNextCard:
		if outcome != domain.OutcomeHome && outcome != domain.OutcomeAway {
			return 0, unpriced(market, outcome)
		}
		// The side in front slows the game down and collects the bookings.
		p = bound(One/2+m.CardStepBP*int64(st.Score.DiffFor(outcome)), m.ShareFloorBP, m.ShareCeilBP)

	default:
		return 0, domain.ErrOddsUnavailable(fmt.Sprintf("market %s is not priced in-play", market))
	}

	return bound(p, minProbBP, maxProbBP), nil
}

// fromProbability converts a probability in basis points to odds in
// hundredths with the configured overround.
func (e *Engine) fromProbability(p int64) int64 {
	return 100_000_000 / (p * e.cfg.Live.OverroundPct)
}

func bound(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func unpriced(market domain.MarketKey, outcome domain.Outcome) error {
	return domain.ErrOddsUnavailable(fmt.Sprintf("outcome %s not offered on %s", outcome, market))
}
