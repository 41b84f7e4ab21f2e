package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const balanceColumns = `user_id, bet_points, diamonds, xp, level, current_streak, best_streak,
	active_bet_count, vip, total_staked, total_won, biggest_win, bets_placed, bets_won, bets_lost,
	opening_bet_points, opening_diamonds, opening_xp, version, updated_at`

func (s *PgStore) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+balanceColumns+` FROM user_balances WHERE user_id = $1`, userID)
	bal, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound("balance", userID.String())
	}
	return bal, err
}

func (s *PgStore) CreateBalance(ctx context.Context, bal *domain.Balance) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_balances
		  (user_id, bet_points, diamonds, xp, level, vip,
		   opening_bet_points, opening_diamonds, opening_xp, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		bal.UserID, bal.BetPoints, bal.Diamonds, bal.XP, bal.Level, bal.VIP,
		bal.Opening.BetPoints, bal.Opening.Diamonds, bal.Opening.XP, bal.Version, bal.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrValidation("balance already exists for " + bal.UserID.String())
		}
		return fmt.Errorf("insert balance: %w", err)
	}
	return nil
}

// updateBalance writes the next state when the row is still at
// expectedVersion, bumping the version.
func updateBalance(ctx context.Context, db DBTX, expectedVersion int64, b domain.Balance) (*domain.Balance, error) {
	row := db.QueryRow(ctx, `
		UPDATE user_balances SET
		  bet_points = $3, diamonds = $4, xp = $5, level = $6,
		  current_streak = $7, best_streak = $8, active_bet_count = $9,
		  total_staked = $10, total_won = $11, biggest_win = $12,
		  bets_placed = $13, bets_won = $14, bets_lost = $15,
		  version = version + 1, updated_at = $16
		WHERE user_id = $1 AND version = $2
		RETURNING `+balanceColumns,
		b.UserID, expectedVersion,
		b.BetPoints, b.Diamonds, b.XP, b.Level,
		b.CurrentStreak, b.BestStreak, b.ActiveBetCount,
		b.Stats.TotalStaked, b.Stats.TotalWon, b.Stats.BiggestWin,
		b.Stats.BetsPlaced, b.Stats.BetsWon, b.Stats.BetsLost,
		b.UpdatedAt)
	bal, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	return bal, nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var b domain.Balance
	err := row.Scan(&b.UserID, &b.BetPoints, &b.Diamonds, &b.XP, &b.Level, &b.CurrentStreak, &b.BestStreak,
		&b.ActiveBetCount, &b.VIP, &b.Stats.TotalStaked, &b.Stats.TotalWon, &b.Stats.BiggestWin,
		&b.Stats.BetsPlaced, &b.Stats.BetsWon, &b.Stats.BetsLost,
		&b.Opening.BetPoints, &b.Opening.Diamonds, &b.Opening.XP, &b.Version, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
