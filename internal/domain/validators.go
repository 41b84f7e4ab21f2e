package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidatePositiveAmount checks that an amount is positive.
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}

// ValidatePlaceBet checks the shape of a wager request: kind, stake,
// selection count per kind, market catalogue and duplicate legs. Match
// state and limits are checked later against live data.
func ValidatePlaceBet(p PlaceBetParams) error {
	if !p.Kind.Valid() {
		return ErrValidation(fmt.Sprintf("unknown bet kind %q", p.Kind))
	}
	if err := ValidatePositiveAmount(p.Stake); err != nil {
		return ErrValidation("stake " + err.Error())
	}
	if p.Boost < 0 {
		return ErrValidation(fmt.Sprintf("invalid boost tier %d", p.Boost))
	}

	n := len(p.Selections)
	switch p.Kind {
	case BetSingle, BetLive:
		if n != 1 {
			return ErrValidation(fmt.Sprintf("%s bet takes exactly one selection, got %d", p.Kind, n))
		}
	case BetAccumulator:
		if n < 2 {
			return ErrValidation(fmt.Sprintf("accumulator needs at least two selections, got %d", n))
		}
	}

	matches := make(map[uuid.UUID]bool, n)
	for i, sel := range p.Selections {
		if sel.MatchID == uuid.Nil {
			return ErrValidation(fmt.Sprintf("selection %d: match id is required", i))
		}
		if err := ValidateSelectionShape(sel.Market, sel.Outcome); err != nil {
			return ErrValidation(fmt.Sprintf("selection %d: %v", i, err))
		}
		spec, _ := sel.Market.Kind.Spec()
		if p.Kind == BetLive && !spec.Live {
			return ErrValidation(fmt.Sprintf("selection %d: market %s is not offered in-play", i, sel.Market.Kind))
		}
		if p.Kind != BetLive && !spec.PreMatch {
			return ErrValidation(fmt.Sprintf("selection %d: market %s is in-play only", i, sel.Market.Kind))
		}
		if p.Kind == BetAccumulator {
			if matches[sel.MatchID] {
				return ErrValidation(fmt.Sprintf("selection %d: accumulator legs must be on distinct matches", i))
			}
			matches[sel.MatchID] = true
		}
	}
	return nil
}
