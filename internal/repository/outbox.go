package repository

import (
	"context"
	"fmt"

	"github.com/betpoints/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// insertOutbox writes an event within the caller's transaction.
func insertOutbox(ctx context.Context, db DBTX, draft domain.OutboxDraft) error {
	_, err := db.Exec(ctx, `
		INSERT INTO event_outbox
		  (event_id, aggregate_type, aggregate_id, event_type, partition_key, headers, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		draft.EventID,
		string(draft.AggregateType),
		draft.AggregateID,
		string(draft.EventType),
		draft.PartitionKey,
		draft.Headers,
		draft.Payload,
		draft.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (s *PgStore) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, aggregate_type, aggregate_id, event_type,
		       partition_key, headers, payload, occurred_at
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OutboxDraft, error) {
		var d domain.OutboxDraft
		err := row.Scan(&d.EventID, &d.AggregateType, &d.AggregateID,
			&d.EventType, &d.PartitionKey, &d.Headers, &d.Payload, &d.OccurredAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox row: %w", err)
	}
	return events, nil
}

func (s *PgStore) MarkPublished(ctx context.Context, eventIDs []uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE event_outbox SET published_at = now() WHERE event_id = ANY($1)`, eventIDs)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
