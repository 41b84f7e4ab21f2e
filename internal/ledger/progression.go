package ledger

import (
	"fmt"

	"github.com/betpoints/platform/internal/domain"
)

// LevelReward is reached at XP total XP and pays out once.
type LevelReward struct {
	Level     int   `json:"level" yaml:"level"`
	XP        int64 `json:"xp" yaml:"xp"`
	BetPoints int64 `json:"bet_points" yaml:"bet_points"`
	Diamonds  int64 `json:"diamonds" yaml:"diamonds"`
}

// Progression holds XP awards and the level ladder.
type Progression struct {
	Levels          []LevelReward `yaml:"levels"`
	PlacementXP     int64         `yaml:"placement_xp"`
	SelectionXP     int64         `yaml:"selection_xp"`
	WinXP           int64         `yaml:"win_xp"`
	LiveWinDiamonds int64         `yaml:"live_win_diamonds"`
}

// DefaultProgression returns the standard ladder up to level 20.
func DefaultProgression() Progression {
	levels := make([]LevelReward, 0, 19)
	xp := int64(0)
	for lvl := 2; lvl <= 20; lvl++ {
		xp += int64(lvl-1) * 100
		reward := LevelReward{Level: lvl, XP: xp, BetPoints: int64(lvl) * 50, Diamonds: int64(lvl)}
		if lvl%5 == 0 {
			reward.Diamonds *= 3
		}
		levels = append(levels, reward)
	}
	return Progression{
		Levels:          levels,
		PlacementXP:     10,
		SelectionXP:     5,
		WinXP:           20,
		LiveWinDiamonds: 2,
	}
}

// Validate checks the ladder is contiguous from level 2 and XP ascends.
func (p Progression) Validate() error {
	for i, l := range p.Levels {
		if l.Level != i+2 {
			return fmt.Errorf("ledger: level ladder must be contiguous from 2, got %d at %d", l.Level, i)
		}
		if i > 0 && l.XP <= p.Levels[i-1].XP {
			return fmt.Errorf("ledger: level %d XP %d does not exceed level %d", l.Level, l.XP, l.Level-1)
		}
		if l.BetPoints < 0 || l.Diamonds < 0 {
			return fmt.Errorf("ledger: level %d has a negative reward", l.Level)
		}
	}
	return nil
}

// XPForPlacement is the XP a new bet earns.
func (p Progression) XPForPlacement(selections int) int64 {
	return p.PlacementXP + p.SelectionXP*int64(max(selections-1, 0))
}

func (p Progression) next(level int) (LevelReward, bool) {
	idx := level - 1
	if idx < 0 || idx >= len(p.Levels) {
		return LevelReward{}, false
	}
	return p.Levels[idx], true
}

// AwardXP credits xp and, in the same posting, cascades every level the
// new total reaches, paying each level's reward.
func AwardXP(post *Posting, prog Progression, xp int64) ([]LevelReward, error) {
	if xp <= 0 {
		return nil, nil
	}
	if err := post.Post(domain.LedgerCreditXP, xp); err != nil {
		return nil, err
	}

	bal := post.Balance()
	var gained []LevelReward
	for {
		next, ok := prog.next(bal.Level)
		if !ok || bal.XP < next.XP {
			break
		}
		bal.Level = next.Level
		if next.BetPoints > 0 {
			if err := post.Post(domain.LedgerCreditLevelReward, next.BetPoints); err != nil {
				return nil, err
			}
		}
		if next.Diamonds > 0 {
			if err := post.Post(domain.LedgerCreditDiamondReward, next.Diamonds); err != nil {
				return nil, err
			}
		}
		post.Emit(domain.NewLevelUpEvent(bal.UserID, next.Level, next.BetPoints, next.Diamonds, post.now))
		gained = append(gained, next)
	}
	return gained, nil
}

// RecordPlacement updates counters for a newly placed bet.
func RecordPlacement(bal *domain.Balance, stake int64) {
	bal.ActiveBetCount++
	bal.Stats.TotalStaked += stake
	bal.Stats.BetsPlaced++
}

// RecordSettlement updates counters and streaks for a settled bet. VOID
// leaves the streak alone.
func RecordSettlement(bal *domain.Balance, status domain.BetStatus, payout int64) {
	if bal.ActiveBetCount > 0 {
		bal.ActiveBetCount--
	}
	switch status {
	case domain.BetWon:
		bal.CurrentStreak++
		if bal.CurrentStreak > bal.BestStreak {
			bal.BestStreak = bal.CurrentStreak
		}
		bal.Stats.BetsWon++
		bal.Stats.TotalWon += payout
		if payout > bal.Stats.BiggestWin {
			bal.Stats.BiggestWin = payout
		}
	case domain.BetLost:
		bal.CurrentStreak = 0
		bal.Stats.BetsLost++
	}
}
