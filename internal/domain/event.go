package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventBetPlaced    EventType = "bet.placed"
	EventBetSettled   EventType = "bet.settled"
	EventLevelUp      EventType = "user.level_up"
	EventLedgerPosted EventType = "ledger.posted"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateBet  AggregateType = "bet"
	AggregateUser AggregateType = "user"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Topic is the Kafka topic an outbox event is published on.
func (d OutboxDraft) Topic() string {
	return "betpoints." + string(d.AggregateType) + "." + string(d.EventType)
}
