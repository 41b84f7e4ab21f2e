package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const betColumns = `id, user_id, kind, stake, total_odds, potential_payout, boost, boost_factor,
	diamond_cost, status, payout, claim_id, claimed_at, placed_at, settled_at`

func (s *PgStore) GetBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	bets, err := loadBets(ctx, s.pool, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(bets) == 0 {
		return nil, domain.ErrNotFound("bet", id.String())
	}
	return &bets[0], nil
}

func (s *PgStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Bet, error) {
	return loadBets(ctx, s.pool, `
		SELECT `+betColumns+` FROM bets
		WHERE user_id = $1
		ORDER BY placed_at DESC
		LIMIT $2`, userID, limit)
}

func (s *PgStore) ListPlacedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.Bet, error) {
	return loadBets(ctx, s.pool, `
		SELECT `+betColumns+` FROM bets
		WHERE user_id = $1 AND placed_at > $2
		ORDER BY placed_at ASC`, userID, since)
}

func (s *PgStore) ListPending(ctx context.Context, limit int) ([]domain.Bet, error) {
	return loadBets(ctx, s.pool, `
		SELECT `+betColumns+` FROM bets
		WHERE status = 'PENDING'
		ORDER BY placed_at ASC
		LIMIT $1`, limit)
}

func (s *PgStore) ListPendingByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.Bet, error) {
	return loadBets(ctx, s.pool, `
		SELECT `+betColumns+` FROM bets
		WHERE status = 'PENDING'
		  AND id IN (SELECT bet_id FROM bet_selections WHERE match_id = $1)
		ORDER BY placed_at ASC`, matchID)
}

func (s *PgStore) ListStaleSettling(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.Bet, error) {
	return loadBets(ctx, s.pool, `
		SELECT `+betColumns+` FROM bets
		WHERE status = 'SETTLING' AND claimed_at < $1
		ORDER BY claimed_at ASC
		LIMIT $2`, claimedBefore, limit)
}

// ClaimBet is a single conditional UPDATE: whichever settler's statement
// commits first owns the bet.
func (s *PgStore) ClaimBet(ctx context.Context, betID, claimID uuid.UUID, now, staleBefore time.Time) (*domain.Bet, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bets SET status = 'SETTLING', claim_id = $2, claimed_at = $3
		WHERE id = $1
		  AND (status = 'PENDING' OR (status = 'SETTLING' AND claimed_at < $4))`,
		betID, claimID, now, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("claim bet %s: %w", betID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrClaimConflict
	}
	return s.GetBet(ctx, betID)
}

func (s *PgStore) SetExternalResult(ctx context.Context, selectionID uuid.UUID, result domain.SelectionResult) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bet_selections sel SET external_result = $2
		FROM bets b
		WHERE sel.id = $1 AND b.id = sel.bet_id AND b.status IN ('PENDING', 'SETTLING')`,
		selectionID, string(result))
	if err != nil {
		return fmt.Errorf("set external result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("open selection", selectionID.String())
	}
	return nil
}

// finalizeBet applies the terminal transition, conditioned on the caller
// still holding the claim.
func finalizeBet(ctx context.Context, tx pgx.Tx, st *domain.BetSettlement) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bets SET status = $3, payout = $4, settled_at = $5
		WHERE id = $1 AND status = 'SETTLING' AND claim_id = $2`,
		st.BetID, st.ClaimID, string(st.Status), st.Payout, st.SettledAt)
	if err != nil {
		return fmt.Errorf("finalize bet %s: %w", st.BetID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClaimConflict
	}

	batch := &pgx.Batch{}
	for _, sel := range st.Selections {
		batch.Queue(`UPDATE bet_selections SET result = $2 WHERE id = $1`, sel.SelectionID, string(sel.Result))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("finalize selections of %s: %w", st.BetID, err)
	}
	return nil
}

func insertBet(ctx context.Context, tx pgx.Tx, bet *domain.Bet) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bets (`+betColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		bet.ID, bet.UserID, string(bet.Kind), bet.Stake, bet.TotalOdds, bet.PotentialPayout,
		int(bet.Boost), bet.BoostFactor, bet.DiamondCost, string(bet.Status), bet.Payout,
		bet.ClaimID, bet.ClaimedAt, bet.PlacedAt, bet.SettledAt)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"bet_selections"},
		[]string{"id", "bet_id", "position", "match_id", "market", "line", "outcome", "odds",
			"odds_clamped", "home_at_placement", "away_at_placement", "result"},
		pgx.CopyFromSlice(len(bet.Selections), func(i int) ([]any, error) {
			sel := bet.Selections[i]
			return []any{sel.ID, bet.ID, i, sel.MatchID, string(sel.Market.Kind), sel.Market.Line,
				string(sel.Outcome), sel.Odds, sel.OddsClamped,
				sel.ScoreAtPlacement.Home, sel.ScoreAtPlacement.Away, string(sel.Result)}, nil
		}))
	if err != nil {
		return fmt.Errorf("insert selections: %w", err)
	}
	return nil
}

// loadBets runs a bets query and attaches selections in position order.
func loadBets(ctx context.Context, db DBTX, query string, args ...interface{}) ([]domain.Bet, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}
	bets, err := pgx.CollectRows(rows, scanBet)
	if err != nil {
		return nil, fmt.Errorf("scan bets: %w", err)
	}
	if len(bets) == 0 {
		return bets, nil
	}

	index := make(map[uuid.UUID]int, len(bets))
	ids := make([]uuid.UUID, len(bets))
	for i, b := range bets {
		index[b.ID] = i
		ids[i] = b.ID
	}

	rows, err = db.Query(ctx, `
		SELECT id, bet_id, match_id, market, line, outcome, odds, odds_clamped,
		       home_at_placement, away_at_placement, result, external_result
		FROM bet_selections
		WHERE bet_id = ANY($1)
		ORDER BY bet_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("query selections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sel domain.Selection
		var external *string
		if err := rows.Scan(&sel.ID, &sel.BetID, &sel.MatchID, &sel.Market.Kind, &sel.Market.Line,
			&sel.Outcome, &sel.Odds, &sel.OddsClamped, &sel.ScoreAtPlacement.Home,
			&sel.ScoreAtPlacement.Away, &sel.Result, &external); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		if external != nil {
			sel.ExternalResult = domain.SelectionResult(*external)
		}
		i := index[sel.BetID]
		bets[i].Selections = append(bets[i].Selections, sel)
	}
	return bets, rows.Err()
}

func scanBet(row pgx.CollectableRow) (domain.Bet, error) {
	var b domain.Bet
	var boost int
	err := row.Scan(&b.ID, &b.UserID, &b.Kind, &b.Stake, &b.TotalOdds, &b.PotentialPayout, &boost,
		&b.BoostFactor, &b.DiamondCost, &b.Status, &b.Payout, &b.ClaimID, &b.ClaimedAt,
		&b.PlacedAt, &b.SettledAt)
	b.Boost = domain.BoostTier(boost)
	return b, err
}
