package ledger

import (
	"fmt"
	"time"

	"github.com/betpoints/platform/internal/domain"
)

// PostPlacement books a priced bet against a balance read: stake debit,
// diamond boost debit, active-bet and stats counters, placement XP and any
// level-ups that XP triggers. The returned batch also carries the bet
// insert and its bet.placed event.
func PostPlacement(bal domain.Balance, bet *domain.Bet, prog Progression, now time.Time) (*domain.LedgerBatch, []LevelReward, error) {
	if bet.Status != domain.BetPending {
		return nil, nil, fmt.Errorf("place bet: bet %s is %s, want PENDING", bet.ID, bet.Status)
	}

	post := NewPosting(bal, &bet.ID, now)
	if bet.DiamondCost > 0 {
		if err := post.Post(domain.LedgerDebitDiamondBoost, bet.DiamondCost); err != nil {
			return nil, nil, err
		}
	}
	if err := post.Post(domain.LedgerDebitStake, bet.Stake); err != nil {
		return nil, nil, err
	}

	RecordPlacement(post.Balance(), bet.Stake)

	levels, err := AwardXP(post, prog, prog.XPForPlacement(len(bet.Selections)))
	if err != nil {
		return nil, nil, fmt.Errorf("place bet: award xp: %w", err)
	}

	post.Emit(domain.NewBetPlacedEvent(bet, now))

	batch := post.Batch()
	batch.Place = bet
	return &batch, levels, nil
}
