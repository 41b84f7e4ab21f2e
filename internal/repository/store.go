package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the store maps to domain sentinels.
const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
)

// PgStore implements Store on a pgx pool. Every ApplyLedgerEntries call is
// one database transaction.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a pgx-backed Store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

var _ Store = (*PgStore)(nil)

// ApplyLedgerEntries writes the batch in one transaction. The claim check
// runs first so a superseded settler fails before touching the balance.
func (s *PgStore) ApplyLedgerEntries(ctx context.Context, userID uuid.UUID, expectedVersion int64, batch domain.LedgerBatch) (*domain.Balance, error) {
	if batch.Balance.UserID != userID {
		return nil, fmt.Errorf("apply ledger entries: batch balance belongs to %s, not %s", batch.Balance.UserID, userID)
	}

	var out *domain.Balance
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if batch.Settle != nil {
			if err := finalizeBet(ctx, tx, batch.Settle); err != nil {
				return err
			}
		}

		bal, err := updateBalance(ctx, tx, expectedVersion, batch.Balance)
		if err != nil {
			return err
		}

		if batch.Place != nil {
			if err := insertBet(ctx, tx, batch.Place); err != nil {
				return err
			}
		}
		if err := insertEntries(ctx, tx, batch.Entries); err != nil {
			return err
		}
		for _, evt := range batch.Events {
			if err := insertOutbox(ctx, tx, evt); err != nil {
				return err
			}
		}
		out = bal
		return nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

// mapPgError turns constraint violations raised inside a ledger
// transaction into domain errors. A check violation is a currency going
// negative; a unique violation is a bet, selection or outbox row written
// twice.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", domain.ErrNegativeBalance, pgErr.ConstraintName)
	case pgUniqueViolation:
		return domain.ErrValidation("duplicate record: " + pgErr.ConstraintName)
	}
	return err
}
