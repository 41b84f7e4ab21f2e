package repository

import (
	"context"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so queries work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// BalanceStore owns per-user balances and applies ledger batches.
type BalanceStore interface {
	// GetBalance returns a NOT_FOUND AppError for unknown users.
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error)

	// CreateBalance registers a user with its opening grant.
	CreateBalance(ctx context.Context, bal *domain.Balance) error

	// ApplyLedgerEntries atomically writes the entries, the next balance
	// state, the bet insert or settlement transition, and the outbox
	// events, provided the stored version still equals expectedVersion.
	// Returns ErrVersionConflict when it does not, and ErrClaimConflict
	// when a settlement transition no longer holds the claim.
	ApplyLedgerEntries(ctx context.Context, userID uuid.UUID, expectedVersion int64, batch domain.LedgerBatch) (*domain.Balance, error)
}

// BetRepository reads bets and moves them through the claim protocol.
type BetRepository interface {
	GetBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error)

	// ListByUser returns a user's bets, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Bet, error)

	// ListPlacedSince returns a user's bets placed after since.
	ListPlacedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.Bet, error)

	// ListPending returns PENDING bets, oldest first.
	ListPending(ctx context.Context, limit int) ([]domain.Bet, error)

	// ListPendingByMatch returns PENDING bets with a selection on the match.
	ListPendingByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.Bet, error)

	// ListStaleSettling returns SETTLING bets claimed before the cutoff.
	ListStaleSettling(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.Bet, error)

	// ClaimBet moves a PENDING bet, or a SETTLING bet whose claim is older
	// than staleBefore, to SETTLING under claimID. Any other state returns
	// ErrClaimConflict.
	ClaimBet(ctx context.Context, betID, claimID uuid.UUID, now, staleBefore time.Time) (*domain.Bet, error)

	// SetExternalResult records an externally decided result on a
	// selection of a non-terminal bet.
	SetExternalResult(ctx context.Context, selectionID uuid.UUID, result domain.SelectionResult) error
}

// LedgerRepository reads the append-only ledger.
type LedgerRepository interface {
	// ListEntries returns a user's entries in posting order.
	ListEntries(ctx context.Context, userID uuid.UUID) ([]domain.LedgerEntry, error)
}

// MatchSource provides fresh match snapshots. Unknown matches return
// ErrMatchNotFound.
type MatchSource interface {
	GetSnapshot(ctx context.Context, matchID uuid.UUID) (*domain.MatchSnapshot, error)
}

// MatchStore is a MatchSource that accepts pushed state.
type MatchStore interface {
	MatchSource
	UpsertSnapshot(ctx context.Context, snap *domain.MatchSnapshot) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// FetchUnpublished returns unpublished events in write order.
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished flags events as delivered.
	MarkPublished(ctx context.Context, eventIDs []uuid.UUID) error
}

// Store is the full persistence surface of the engine.
type Store interface {
	BalanceStore
	BetRepository
	LedgerRepository
	MatchStore
	OutboxRepository
}
