package repository

import (
	"context"
	"fmt"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *PgStore) ListEntries(ctx context.Context, userID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, kind, currency, amount, balance_before, balance_after, bet_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY seq ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LedgerEntry, error) {
		var e domain.LedgerEntry
		err := row.Scan(&e.ID, &e.UserID, &e.Kind, &e.Currency, &e.Amount,
			&e.BalanceBefore, &e.BalanceAfter, &e.BetID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ledger entries: %w", err)
	}
	return entries, nil
}

// insertEntries appends a batch in posting order; seq preserves it.
func insertEntries(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"ledger_entries"},
		[]string{"id", "user_id", "kind", "currency", "amount", "balance_before", "balance_after", "bet_id", "created_at"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.ID, e.UserID, string(e.Kind), string(e.Currency), e.Amount,
				e.BalanceBefore, e.BalanceAfter, e.BetID, e.CreatedAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}
