package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the lifecycle state reported by the match source.
type MatchStatus string

const (
	MatchScheduled MatchStatus = "SCHEDULED"
	MatchLive      MatchStatus = "LIVE"
	MatchFinished  MatchStatus = "FINISHED"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchScheduled, MatchLive, MatchFinished:
		return true
	}
	return false
}

// Score is a home/away goal pair.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Total returns the combined goals.
func (s Score) Total() int { return s.Home + s.Away }

// DiffFor returns the goal differential from the given side's perspective.
// Positive means that side is ahead.
func (s Score) DiffFor(side Outcome) int {
	switch side {
	case OutcomeHome:
		return s.Home - s.Away
	case OutcomeAway:
		return s.Away - s.Home
	}
	return 0
}

// MatchSnapshot is the read-only view of a match at a point in time.
// BaseOdds carries the pre-match price list keyed by market.
type MatchSnapshot struct {
	ID        uuid.UUID                       `json:"id"`
	HomeTeam  string                          `json:"home_team"`
	AwayTeam  string                          `json:"away_team"`
	Score     Score                           `json:"score"`
	Minute    int                             `json:"minute"`
	Status    MatchStatus                     `json:"status"`
	Derby     bool                            `json:"derby"`
	Featured  bool                            `json:"featured"`
	KickoffAt time.Time                       `json:"kickoff_at"`
	BaseOdds  map[MarketKey]map[Outcome]int64 `json:"-"`
	UpdatedAt time.Time                       `json:"updated_at"`
}

// MarketOdds is the wire form of one market's base prices, used where a
// struct map key cannot be serialised.
type MarketOdds struct {
	MarketKey
	Odds map[Outcome]int64 `json:"odds"`
}

// MarketList flattens BaseOdds for JSON transport, ordered by market key.
func (m MatchSnapshot) MarketList() []MarketOdds {
	out := make([]MarketOdds, 0, len(m.BaseOdds))
	for key, odds := range m.BaseOdds {
		out = append(out, MarketOdds{MarketKey: key, Odds: odds})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// SetMarkets replaces BaseOdds from the wire form.
func (m *MatchSnapshot) SetMarkets(list []MarketOdds) {
	m.BaseOdds = make(map[MarketKey]map[Outcome]int64, len(list))
	for _, mo := range list {
		m.BaseOdds[mo.MarketKey] = mo.Odds
	}
}

func (m MatchSnapshot) MarshalJSON() ([]byte, error) {
	type alias MatchSnapshot
	return json.Marshal(struct {
		alias
		Markets []MarketOdds `json:"markets,omitempty"`
	}{alias(m), m.MarketList()})
}

func (m *MatchSnapshot) UnmarshalJSON(data []byte) error {
	type alias MatchSnapshot
	aux := struct {
		*alias
		Markets []MarketOdds `json:"markets"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.SetMarkets(aux.Markets)
	return nil
}
