package policy

import (
	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/odds"
)

// CheckBoost verifies a boost tier is unlocked at the user's level.
func CheckBoost(tier odds.BoostTier, level int) error {
	if level < tier.MinLevel {
		return domain.ErrLimitExceeded("boost_level", int64(tier.MinLevel), int64(level))
	}
	return nil
}

// CheckAffordability verifies the balance covers the stake and the diamond
// cost of a boost. Diamonds are checked first so a boosted wager the user
// cannot pay for is refused without touching BetPoints.
func CheckAffordability(bal *domain.Balance, stake, diamondCost int64) error {
	if diamondCost > 0 && bal.Diamonds < diamondCost {
		return domain.ErrInsufficientBalance(domain.CurrencyDiamonds)
	}
	if bal.BetPoints < stake {
		return domain.ErrInsufficientBalance(domain.CurrencyBetPoints)
	}
	return nil
}
