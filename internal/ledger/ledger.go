package ledger

import (
	"fmt"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
)

// Posting builds one atomic batch of ledger entries against a working copy
// of a balance. Every entry snapshots the balance before and after it, so
// the batch replays exactly. Nothing is persisted until a store applies
// the batch.
type Posting struct {
	bal     domain.Balance
	betID   *uuid.UUID
	now     time.Time
	entries []domain.LedgerEntry
	events  []domain.OutboxDraft
}

// NewPosting starts a batch from a balance read.
func NewPosting(bal domain.Balance, betID *uuid.UUID, now time.Time) *Posting {
	return &Posting{bal: bal, betID: betID, now: now}
}

// Post appends an entry. amount is the magnitude; debit kinds subtract it.
// A debit that would take the currency below zero fails with
// INSUFFICIENT_BALANCE and leaves the posting unchanged.
func (p *Posting) Post(kind domain.LedgerKind, amount int64) error {
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return fmt.Errorf("post %s: %w", kind, err)
	}
	currency := kind.Currency()
	if currency == "" {
		return fmt.Errorf("post: unknown ledger kind %q", kind)
	}

	signed := amount
	if kind.Debit() {
		signed = -amount
	}
	before := p.bal.Amount(currency)
	after := before + signed
	if after < 0 {
		return domain.ErrInsufficientBalance(currency)
	}

	switch currency {
	case domain.CurrencyBetPoints:
		p.bal.BetPoints = after
	case domain.CurrencyDiamonds:
		p.bal.Diamonds = after
	case domain.CurrencyXP:
		p.bal.XP = after
	}

	p.entries = append(p.entries, domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        p.bal.UserID,
		Kind:          kind,
		Currency:      currency,
		Amount:        signed,
		BalanceBefore: before,
		BalanceAfter:  after,
		BetID:         p.betID,
		CreatedAt:     p.now,
	})
	return nil
}

// Balance exposes the working balance for counter updates.
func (p *Posting) Balance() *domain.Balance { return &p.bal }

// Entries returns the entries posted so far.
func (p *Posting) Entries() []domain.LedgerEntry { return p.entries }

// Emit queues an outbox event for the same unit of work.
func (p *Posting) Emit(evt domain.OutboxDraft) { p.events = append(p.events, evt) }

// Batch returns the unit of work. A ledger.posted event mirroring the
// entries is appended when any were posted.
func (p *Posting) Batch() domain.LedgerBatch {
	bal := p.bal
	bal.UpdatedAt = p.now
	events := p.events
	if len(p.entries) > 0 {
		events = append(events, domain.NewLedgerPostedEvent(p.bal.UserID, p.entries, p.now))
	}
	return domain.LedgerBatch{
		Entries: p.entries,
		Balance: bal,
		Events:  events,
	}
}
