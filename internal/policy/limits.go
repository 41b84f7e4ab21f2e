package policy

import (
	"fmt"
	"math"
	"time"

	"github.com/betpoints/platform/internal/domain"
)

// Roles that lift every wagering limit.
const (
	RoleAdmin     = "admin"
	RoleUnlimited = "unlimited"
)

// Window lengths for rolling checks.
const (
	DailyWindow  = 24 * time.Hour
	WeeklyWindow = 7 * 24 * time.Hour
)

// Limits is the envelope a wager must fit in. Zero means "no limit" for
// every field except MinStake.
type Limits struct {
	MinStake       int64 `json:"min_stake" yaml:"min_stake"`
	MaxStake       int64 `json:"max_stake" yaml:"max_stake"`
	MaxSelections  int   `json:"max_selections" yaml:"max_selections"`
	MinTotalOdds   int64 `json:"min_total_odds" yaml:"min_total_odds"`
	MaxTotalOdds   int64 `json:"max_total_odds" yaml:"max_total_odds"`
	MaxPayout      int64 `json:"max_payout" yaml:"max_payout"`
	MaxDailyBets   int   `json:"max_daily_bets" yaml:"max_daily_bets"`
	MaxDailyStake  int64 `json:"max_daily_stake" yaml:"max_daily_stake"`
	MaxWeeklyStake int64 `json:"max_weekly_stake" yaml:"max_weekly_stake"`
	Unlimited      bool  `json:"unlimited,omitempty" yaml:"-"`
}

// Tier is a row of the limits table.
type Tier struct {
	Name     string `json:"name" yaml:"name"`
	MinLevel int    `json:"min_level" yaml:"min_level"`
	VIP      bool   `json:"vip" yaml:"vip"`
	Limits   Limits `json:"limits" yaml:"limits"`
}

// Table is the tiered lookup, ordered by ascending MinLevel.
type Table struct {
	Tiers []Tier `yaml:"tiers"`
}

// DefaultTable returns the standard tiers. VIP status jumps straight to
// the top envelope.
func DefaultTable() Table {
	return Table{Tiers: []Tier{
		{Name: "bronze", MinLevel: 1, Limits: Limits{
			MinStake: 10, MaxStake: 500, MaxSelections: 5, MinTotalOdds: 105, MaxTotalOdds: 5_000,
			MaxPayout: 10_000, MaxDailyBets: 20, MaxDailyStake: 2_000, MaxWeeklyStake: 8_000,
		}},
		{Name: "silver", MinLevel: 5, Limits: Limits{
			MinStake: 10, MaxStake: 1_000, MaxSelections: 8, MinTotalOdds: 105, MaxTotalOdds: 10_000,
			MaxPayout: 25_000, MaxDailyBets: 40, MaxDailyStake: 5_000, MaxWeeklyStake: 20_000,
		}},
		{Name: "gold", MinLevel: 10, Limits: Limits{
			MinStake: 10, MaxStake: 2_500, MaxSelections: 10, MinTotalOdds: 105, MaxTotalOdds: 25_000,
			MaxPayout: 75_000, MaxDailyBets: 60, MaxDailyStake: 12_000, MaxWeeklyStake: 50_000,
		}},
		{Name: "platinum", MinLevel: 20, Limits: Limits{
			MinStake: 10, MaxStake: 5_000, MaxSelections: 12, MinTotalOdds: 105, MaxTotalOdds: 50_000,
			MaxPayout: 200_000, MaxDailyBets: 100, MaxDailyStake: 25_000, MaxWeeklyStake: 100_000,
		}},
		{Name: "vip", MinLevel: 1, VIP: true, Limits: Limits{
			MinStake: 10, MaxStake: 5_000, MaxSelections: 12, MinTotalOdds: 105, MaxTotalOdds: 50_000,
			MaxPayout: 250_000, MaxDailyBets: 150, MaxDailyStake: 40_000, MaxWeeklyStake: 150_000,
		}},
	}}
}

// Validate checks the table has a tier for level 1.
func (t Table) Validate() error {
	for _, tier := range t.Tiers {
		if !tier.VIP && tier.MinLevel <= 1 {
			return nil
		}
	}
	return fmt.Errorf("policy: limits table has no entry-level tier")
}

// Subject is who is wagering.
type Subject struct {
	Level int
	VIP   bool
	Role  string
}

// Envelope resolves the limits for a subject. Role overrides win. VIPs
// take the highest VIP tier their level reaches; everyone else the highest
// regular tier.
func (t Table) Envelope(s Subject) (Tier, Limits) {
	if s.Role == RoleAdmin || s.Role == RoleUnlimited {
		return Tier{Name: s.Role}, Limits{Unlimited: true}
	}
	level := max(s.Level, 1)
	pick := func(vip bool) *Tier {
		var best *Tier
		for i := range t.Tiers {
			tier := &t.Tiers[i]
			if tier.VIP != vip || tier.MinLevel > level {
				continue
			}
			if best == nil || tier.MinLevel > best.MinLevel {
				best = tier
			}
		}
		return best
	}

	var best *Tier
	if s.VIP {
		best = pick(true)
	}
	if best == nil {
		best = pick(false)
	}
	if best == nil {
		// No tier applies: nothing can be staked.
		return Tier{Name: "none"}, Limits{MinStake: math.MaxInt64}
	}
	return *best, best.Limits
}

// Candidate is the priced wager being checked.
type Candidate struct {
	Stake           int64
	Selections      int
	TotalOdds       int64
	PotentialPayout int64
}

// Window is the user's rolling activity at validation time.
type Window struct {
	DailyCount  int
	DailyStake  int64
	WeeklyStake int64
}

// WindowAt sums the trailing day and week of bets as seen at now.
func WindowAt(now time.Time, bets []domain.Bet) Window {
	var w Window
	dayStart := now.Add(-DailyWindow)
	weekStart := now.Add(-WeeklyWindow)
	for _, b := range bets {
		if b.PlacedAt.After(now) || !b.PlacedAt.After(weekStart) {
			continue
		}
		w.WeeklyStake += b.Stake
		if b.PlacedAt.After(dayStart) {
			w.DailyCount++
			w.DailyStake += b.Stake
		}
	}
	return w
}

// Evaluation holds the result of a limits check.
type Evaluation struct {
	Allowed       bool   `json:"allowed"`
	BreachedLimit string `json:"breached_limit,omitempty"`
	LimitValue    int64  `json:"limit_value,omitempty"`
	Requested     int64  `json:"requested,omitempty"`
}

func breach(name string, limit, requested int64) Evaluation {
	return Evaluation{Allowed: false, BreachedLimit: name, LimitValue: limit, Requested: requested}
}

// Evaluate checks a candidate against limits, stopping at the first
// failure. Order: stake, selections, total odds, payout, daily count,
// daily stake, weekly stake.
func Evaluate(l Limits, c Candidate, w Window) Evaluation {
	if l.Unlimited {
		return Evaluation{Allowed: true}
	}

	if c.Stake < l.MinStake {
		return breach("min_stake", l.MinStake, c.Stake)
	}
	if l.MaxStake > 0 && c.Stake > l.MaxStake {
		return breach("max_stake", l.MaxStake, c.Stake)
	}
	if l.MaxSelections > 0 && c.Selections > l.MaxSelections {
		return breach("max_selections", int64(l.MaxSelections), int64(c.Selections))
	}
	if c.TotalOdds < l.MinTotalOdds {
		return breach("min_total_odds", l.MinTotalOdds, c.TotalOdds)
	}
	if l.MaxTotalOdds > 0 && c.TotalOdds > l.MaxTotalOdds {
		return breach("max_total_odds", l.MaxTotalOdds, c.TotalOdds)
	}
	if l.MaxPayout > 0 && c.PotentialPayout > l.MaxPayout {
		return breach("max_payout", l.MaxPayout, c.PotentialPayout)
	}

	// Rolling windows
	if l.MaxDailyBets > 0 && w.DailyCount+1 > l.MaxDailyBets {
		return breach("daily_bet_count", int64(l.MaxDailyBets), int64(w.DailyCount+1))
	}
	if l.MaxDailyStake > 0 && w.DailyStake+c.Stake > l.MaxDailyStake {
		return breach("daily_stake", l.MaxDailyStake, w.DailyStake+c.Stake)
	}
	if l.MaxWeeklyStake > 0 && w.WeeklyStake+c.Stake > l.MaxWeeklyStake {
		return breach("weekly_stake", l.MaxWeeklyStake, w.WeeklyStake+c.Stake)
	}

	return Evaluation{Allowed: true}
}

// Validator resolves envelopes and checks wagers.
type Validator struct {
	table Table
}

// NewValidator creates a Validator over a limits table.
func NewValidator(table Table) (*Validator, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Validator{table: table}, nil
}

// Limits returns the envelope for a subject.
func (v *Validator) Limits(s Subject) Limits {
	_, l := v.table.Envelope(s)
	return l
}

// Validate returns nil or a LIMIT_EXCEEDED error naming the first breach.
func (v *Validator) Validate(s Subject, c Candidate, w Window) error {
	ev := Evaluate(v.Limits(s), c, w)
	if ev.Allowed {
		return nil
	}
	return domain.ErrLimitExceeded(ev.BreachedLimit, ev.LimitValue, ev.Requested)
}
