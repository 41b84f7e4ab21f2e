package domain

import (
	"time"

	"github.com/google/uuid"
)

// BetKind is the shape of a wager.
type BetKind string

const (
	BetSingle      BetKind = "SINGLE"
	BetAccumulator BetKind = "ACCUMULATOR"
	BetLive        BetKind = "LIVE"
)

func (k BetKind) Valid() bool {
	switch k {
	case BetSingle, BetAccumulator, BetLive:
		return true
	}
	return false
}

// RequiredMatchStatus is the match state a selection must reference for
// this kind of bet.
func (k BetKind) RequiredMatchStatus() MatchStatus {
	if k == BetLive {
		return MatchLive
	}
	return MatchScheduled
}

// BetStatus tracks a bet through settlement. SETTLING is the transient
// claim marker held by exactly one settler.
type BetStatus string

const (
	BetPending  BetStatus = "PENDING"
	BetSettling BetStatus = "SETTLING"
	BetWon      BetStatus = "WON"
	BetLost     BetStatus = "LOST"
	BetVoid     BetStatus = "VOID"
)

// Terminal reports whether no further transition is possible.
func (s BetStatus) Terminal() bool {
	switch s {
	case BetWon, BetLost, BetVoid:
		return true
	}
	return false
}

// SelectionResult is the per-leg outcome.
type SelectionResult string

const (
	ResultPending SelectionResult = "PENDING"
	ResultWon     SelectionResult = "WON"
	ResultLost    SelectionResult = "LOST"
	ResultVoid    SelectionResult = "VOID"
)

func (r SelectionResult) Valid() bool {
	switch r {
	case ResultPending, ResultWon, ResultLost, ResultVoid:
		return true
	}
	return false
}

// BoostTier selects a diamond boost. Zero means no boost.
type BoostTier int

// Selection is one leg of a bet. Odds are frozen at placement.
type Selection struct {
	ID               uuid.UUID       `json:"id"`
	BetID            uuid.UUID       `json:"bet_id"`
	MatchID          uuid.UUID       `json:"match_id"`
	Market           MarketKey       `json:"market"`
	Outcome          Outcome         `json:"outcome"`
	Odds             int64           `json:"odds"`
	OddsClamped      bool            `json:"odds_clamped"`
	ScoreAtPlacement Score           `json:"score_at_placement"`
	Result           SelectionResult `json:"result"`
	ExternalResult   SelectionResult `json:"external_result,omitempty"`
}

// Bet is the wager aggregate. It is append-only: settlement changes status
// and settlement fields exactly once.
type Bet struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	Kind            BetKind     `json:"kind"`
	Stake           int64       `json:"stake"`
	Selections      []Selection `json:"selections"`
	TotalOdds       int64       `json:"total_odds"`
	PotentialPayout int64       `json:"potential_payout"`
	Boost           BoostTier   `json:"boost,omitempty"`
	BoostFactor     int64       `json:"boost_factor,omitempty"`
	DiamondCost     int64       `json:"diamond_cost,omitempty"`
	Status          BetStatus   `json:"status"`
	Payout          int64       `json:"payout"`
	ClaimID         *uuid.UUID  `json:"-"`
	ClaimedAt       *time.Time  `json:"-"`
	PlacedAt        time.Time   `json:"placed_at"`
	SettledAt       *time.Time  `json:"settled_at,omitempty"`
}

// Boosted reports whether diamonds were spent on the bet.
func (b *Bet) Boosted() bool { return b.Boost > 0 }

// MatchIDs returns the distinct matches the bet references, in selection order.
func (b *Bet) MatchIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(b.Selections))
	out := make([]uuid.UUID, 0, len(b.Selections))
	for _, s := range b.Selections {
		if !seen[s.MatchID] {
			seen[s.MatchID] = true
			out = append(out, s.MatchID)
		}
	}
	return out
}

// SelectionRequest is one requested leg before pricing.
type SelectionRequest struct {
	MatchID uuid.UUID
	Market  MarketKey
	Outcome Outcome
}

// PlaceBetParams is the input to the placement coordinator.
type PlaceBetParams struct {
	UserID     uuid.UUID
	Role       string
	Kind       BetKind
	Stake      int64
	Boost      BoostTier
	Selections []SelectionRequest
}

// SettleOutcome is what a settlement attempt observed.
type SettleOutcome string

const (
	OutcomeSettled        SettleOutcome = "SETTLED"
	OutcomeDeferred       SettleOutcome = "DEFERRED"
	OutcomeAlreadySettled SettleOutcome = "ALREADY_SETTLED"
)

// SettleResult reports a settlement attempt. Bet is set when the attempt
// observed or produced a terminal bet.
type SettleResult struct {
	Outcome SettleOutcome `json:"outcome"`
	Bet     *Bet          `json:"bet,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// WithSettlement returns a copy of the bet in its settled form.
func (b *Bet) WithSettlement(s BetSettlement) *Bet {
	out := *b
	out.Status = s.Status
	out.Payout = s.Payout
	settledAt := s.SettledAt
	out.SettledAt = &settledAt
	out.ClaimID, out.ClaimedAt = nil, nil
	out.Selections = make([]Selection, len(b.Selections))
	copy(out.Selections, b.Selections)
	for i := range out.Selections {
		for _, r := range s.Selections {
			if r.SelectionID == out.Selections[i].ID {
				out.Selections[i].Result = r.Result
			}
		}
	}
	return &out
}
