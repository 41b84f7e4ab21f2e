package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *PgStore) GetSnapshot(ctx context.Context, matchID uuid.UUID) (*domain.MatchSnapshot, error) {
	var m domain.MatchSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, home_team, away_team, home_score, away_score, minute, status,
		       derby, featured, kickoff_at, updated_at
		FROM matches WHERE id = $1`, matchID).
		Scan(&m.ID, &m.HomeTeam, &m.AwayTeam, &m.Score.Home, &m.Score.Away, &m.Minute, &m.Status,
			&m.Derby, &m.Featured, &m.KickoffAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", matchID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT market, line, outcome, odds FROM match_odds WHERE match_id = $1`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query match odds: %w", err)
	}
	defer rows.Close()
	m.BaseOdds = make(map[domain.MarketKey]map[domain.Outcome]int64)
	for rows.Next() {
		var key domain.MarketKey
		var outcome domain.Outcome
		var odds int64
		if err := rows.Scan(&key.Kind, &key.Line, &outcome, &odds); err != nil {
			return nil, fmt.Errorf("scan match odds: %w", err)
		}
		if m.BaseOdds[key] == nil {
			m.BaseOdds[key] = make(map[domain.Outcome]int64)
		}
		m.BaseOdds[key][outcome] = odds
	}
	return &m, rows.Err()
}

// UpsertSnapshot replaces the match row and its whole odds board.
func (s *PgStore) UpsertSnapshot(ctx context.Context, m *domain.MatchSnapshot) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO matches (id, home_team, away_team, home_score, away_score, minute, status,
			                     derby, featured, kickoff_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
			  home_team = EXCLUDED.home_team, away_team = EXCLUDED.away_team,
			  home_score = EXCLUDED.home_score, away_score = EXCLUDED.away_score,
			  minute = EXCLUDED.minute, status = EXCLUDED.status,
			  derby = EXCLUDED.derby, featured = EXCLUDED.featured,
			  kickoff_at = EXCLUDED.kickoff_at, updated_at = EXCLUDED.updated_at`,
			m.ID, m.HomeTeam, m.AwayTeam, m.Score.Home, m.Score.Away, m.Minute, string(m.Status),
			m.Derby, m.Featured, m.KickoffAt, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert match %s: %w", m.ID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM match_odds WHERE match_id = $1`, m.ID); err != nil {
			return fmt.Errorf("clear match odds: %w", err)
		}
		var rows [][]any
		for _, mo := range m.MarketList() {
			for outcome, odds := range mo.Odds {
				rows = append(rows, []any{m.ID, string(mo.Kind), mo.Line, string(outcome), odds})
			}
		}
		if len(rows) == 0 {
			return nil
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"match_odds"},
			[]string{"match_id", "market", "line", "outcome", "odds"}, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("insert match odds: %w", err)
		}
		return nil
	})
}
