package ledger

import (
	"fmt"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
)

// InvariantCheck records a single invariant validation.
type InvariantCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// ReplayResult holds the outcome of rebuilding a balance from its ledger.
type ReplayResult struct {
	UserID        uuid.UUID        `json:"user_id"`
	EntryCount    int              `json:"entry_count"`
	Reconstructed domain.Opening   `json:"reconstructed"`
	Invariants    []InvariantCheck `json:"invariants"`
	AllPassed     bool             `json:"all_passed"`
}

// Replay rebuilds a user's currencies from the opening grant and the
// entries in posting order, then validates 4 invariants.
//
// Invariants:
//  1. Entry arithmetic: balance_after - balance_before == amount on every entry
//  2. Entry chain: each entry starts from the running balance of its currency
//  3. Non-negativity: no running balance ever drops below zero
//  4. Conservation: opening + sum(amounts) equals the current balance
func Replay(bal *domain.Balance, entries []domain.LedgerEntry) ReplayResult {
	running := map[domain.Currency]int64{
		domain.CurrencyBetPoints: bal.Opening.BetPoints,
		domain.CurrencyDiamonds:  bal.Opening.Diamonds,
		domain.CurrencyXP:        bal.Opening.XP,
	}

	arithmetic := InvariantCheck{Name: "entry_arithmetic", Passed: true, Detail: "ok"}
	chain := InvariantCheck{Name: "entry_chain", Passed: true, Detail: "ok"}
	nonNegative := InvariantCheck{Name: "non_negative", Passed: true, Detail: "ok"}

	for i, e := range entries {
		if arithmetic.Passed && e.BalanceAfter-e.BalanceBefore != e.Amount {
			arithmetic.Passed = false
			arithmetic.Detail = fmt.Sprintf("entry %d (%s): %d - %d != %d", i, e.ID, e.BalanceAfter, e.BalanceBefore, e.Amount)
		}
		if chain.Passed && e.BalanceBefore != running[e.Currency] {
			chain.Passed = false
			chain.Detail = fmt.Sprintf("entry %d (%s): before=%d running=%d", i, e.ID, e.BalanceBefore, running[e.Currency])
		}
		running[e.Currency] += e.Amount
		if nonNegative.Passed && running[e.Currency] < 0 {
			nonNegative.Passed = false
			nonNegative.Detail = fmt.Sprintf("entry %d (%s): %s went to %d", i, e.ID, e.Currency, running[e.Currency])
		}
	}

	rebuilt := domain.Opening{
		BetPoints: running[domain.CurrencyBetPoints],
		Diamonds:  running[domain.CurrencyDiamonds],
		XP:        running[domain.CurrencyXP],
	}
	conservation := InvariantCheck{
		Name: "conservation",
		Passed: rebuilt.BetPoints == bal.BetPoints &&
			rebuilt.Diamonds == bal.Diamonds &&
			rebuilt.XP == bal.XP,
		Detail: fmt.Sprintf("ledger=[%d,%d,%d] balance=[%d,%d,%d]",
			rebuilt.BetPoints, rebuilt.Diamonds, rebuilt.XP,
			bal.BetPoints, bal.Diamonds, bal.XP),
	}

	checks := []InvariantCheck{arithmetic, chain, nonNegative, conservation}
	allPassed := true
	for _, c := range checks {
		if !c.Passed {
			allPassed = false
		}
	}

	return ReplayResult{
		UserID:        bal.UserID,
		EntryCount:    len(entries),
		Reconstructed: rebuilt,
		Invariants:    checks,
		AllPassed:     allPassed,
	}
}
