package ledger

import (
	"fmt"

	"github.com/betpoints/platform/internal/domain"
)

// PostSettlement books the outcome of a claimed bet: payout or refund,
// the live-win diamond reward, counters, streaks, win XP with its level
// cascade, and the bet.settled event. The batch carries the terminal
// transition, conditioned by the store on the claim.
func PostSettlement(bal domain.Balance, bet *domain.Bet, settle domain.BetSettlement, prog Progression) (*domain.LedgerBatch, []LevelReward, error) {
	now := settle.SettledAt
	post := NewPosting(bal, &bet.ID, now)

	switch settle.Status {
	case domain.BetWon:
		if settle.Payout > 0 {
			if err := post.Post(domain.LedgerCreditPayout, settle.Payout); err != nil {
				return nil, nil, err
			}
		}
		if bet.Kind == domain.BetLive && prog.LiveWinDiamonds > 0 {
			if err := post.Post(domain.LedgerCreditDiamondReward, prog.LiveWinDiamonds); err != nil {
				return nil, nil, err
			}
		}
	case domain.BetVoid:
		if err := post.Post(domain.LedgerCreditRefund, bet.Stake); err != nil {
			return nil, nil, err
		}
	case domain.BetLost:
	default:
		return nil, nil, fmt.Errorf("settle bet: %s is not a terminal status", settle.Status)
	}

	RecordSettlement(post.Balance(), settle.Status, settle.Payout)

	var levels []LevelReward
	if settle.Status == domain.BetWon {
		var err error
		levels, err = AwardXP(post, prog, prog.WinXP)
		if err != nil {
			return nil, nil, fmt.Errorf("settle bet: award xp: %w", err)
		}
	}

	post.Emit(domain.NewBetSettledEvent(bet.WithSettlement(settle), now))

	batch := post.Batch()
	batch.Settle = &settle
	return &batch, levels, nil
}
