package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewBetPlacedEvent announces a freshly persisted PENDING bet.
func NewBetPlacedEvent(bet *Bet, at time.Time) OutboxDraft {
	payload, _ := json.Marshal(bet)
	return newDraft(AggregateBet, bet.ID, bet.UserID, EventBetPlaced, payload, at)
}

// NewBetSettledEvent carries the finalized bet. Downstream achievement
// processing consumes it, so it is written in the settlement transaction.
func NewBetSettledEvent(bet *Bet, at time.Time) OutboxDraft {
	payload, _ := json.Marshal(bet)
	return newDraft(AggregateBet, bet.ID, bet.UserID, EventBetSettled, payload, at)
}

// NewLevelUpEvent records a single level gained.
func NewLevelUpEvent(userID uuid.UUID, level int, betPoints, diamonds int64, at time.Time) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"user_id":    userID.String(),
		"level":      level,
		"bet_points": betPoints,
		"diamonds":   diamonds,
	})
	return newDraft(AggregateUser, userID, userID, EventLevelUp, payload, at)
}

// NewLedgerPostedEvent mirrors a batch of entries for audit consumers.
func NewLedgerPostedEvent(userID uuid.UUID, entries []LedgerEntry, at time.Time) OutboxDraft {
	payload, _ := json.Marshal(entries)
	return newDraft(AggregateUser, userID, userID, EventLedgerPosted, payload, at)
}

func newDraft(agg AggregateType, aggID, partition uuid.UUID, evt EventType, payload []byte, at time.Time) OutboxDraft {
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID.String(),
		EventType:     evt,
		PartitionKey:  partition.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    at,
	}
}
