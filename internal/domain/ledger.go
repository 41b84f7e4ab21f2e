package domain

import (
	"time"

	"github.com/google/uuid"
)

// Currency is the unit a ledger entry moves.
type Currency string

const (
	CurrencyBetPoints Currency = "BETPOINTS"
	CurrencyDiamonds  Currency = "DIAMONDS"
	CurrencyXP        Currency = "XP"
)

// LedgerKind classifies a ledger entry.
type LedgerKind string

const (
	LedgerDebitStake          LedgerKind = "DEBIT_STAKE"
	LedgerCreditPayout        LedgerKind = "CREDIT_PAYOUT"
	LedgerCreditRefund        LedgerKind = "CREDIT_REFUND"
	LedgerDebitDiamondBoost   LedgerKind = "DEBIT_DIAMOND_BOOST"
	LedgerCreditDiamondReward LedgerKind = "CREDIT_DIAMOND_REWARD"
	LedgerCreditLevelReward   LedgerKind = "CREDIT_LEVEL_REWARD"
	LedgerCreditXP            LedgerKind = "CREDIT_XP"
)

// Currency returns the currency an entry of this kind moves. Level rewards
// are paid in BetPoints; the diamond part of a level reward is booked as
// CREDIT_DIAMOND_REWARD.
func (k LedgerKind) Currency() Currency {
	switch k {
	case LedgerDebitStake, LedgerCreditPayout, LedgerCreditRefund, LedgerCreditLevelReward:
		return CurrencyBetPoints
	case LedgerDebitDiamondBoost, LedgerCreditDiamondReward:
		return CurrencyDiamonds
	case LedgerCreditXP:
		return CurrencyXP
	}
	return ""
}

// Debit reports whether the kind removes value.
func (k LedgerKind) Debit() bool {
	return k == LedgerDebitStake || k == LedgerDebitDiamondBoost
}

// LedgerEntry is an immutable balance movement. Amount is signed:
// BalanceAfter - BalanceBefore == Amount.
type LedgerEntry struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Kind          LedgerKind `json:"kind"`
	Currency      Currency   `json:"currency"`
	Amount        int64      `json:"amount"`
	BalanceBefore int64      `json:"balance_before"`
	BalanceAfter  int64      `json:"balance_after"`
	BetID         *uuid.UUID `json:"bet_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SelectionSettlement records the evaluated result of one leg.
type SelectionSettlement struct {
	SelectionID uuid.UUID       `json:"selection_id"`
	Result      SelectionResult `json:"result"`
}

// BetSettlement moves a claimed bet to its terminal status. The store must
// reject it unless the bet is SETTLING under ClaimID.
type BetSettlement struct {
	BetID      uuid.UUID             `json:"bet_id"`
	ClaimID    uuid.UUID             `json:"claim_id"`
	Status     BetStatus             `json:"status"`
	Payout     int64                 `json:"payout"`
	SettledAt  time.Time             `json:"settled_at"`
	Selections []SelectionSettlement `json:"selections"`
}

// LedgerBatch is one atomic unit of work against a user's balance. Balance
// is the state after Entries are applied; its Version is assigned by the
// store.
type LedgerBatch struct {
	Entries []LedgerEntry
	Balance Balance
	Place   *Bet
	Settle  *BetSettlement
	Events  []OutboxDraft
}
