package odds

import (
	"fmt"
	"time"

	"github.com/betpoints/platform/internal/domain"
)

// One is the identity factor. Factors are basis points: 11500 = 1.15x.
const One int64 = 10000

// Bracket maps base odds below Below to an enhancement factor. A bracket
// with Below == 0 catches everything above the previous ones.
type Bracket struct {
	Below  int64 `yaml:"below"`
	Factor int64 `yaml:"factor"`
}

// BoostTier is a purchasable diamond boost.
type BoostTier struct {
	Tier        domain.BoostTier `yaml:"tier"`
	Factor      int64            `yaml:"factor"`
	DiamondCost int64            `yaml:"diamond_cost"`
	MinLevel    int              `yaml:"min_level"`
}

// Promotion is a time-boxed promotional multiplier. An empty Markets list
// applies to every market.
type Promotion struct {
	ID       string              `yaml:"id"`
	Factor   int64               `yaml:"factor"`
	StartsAt time.Time           `yaml:"starts_at"`
	EndsAt   time.Time           `yaml:"ends_at"`
	Markets  []domain.MarketKind `yaml:"markets"`
}

// ActiveAt reports whether the promotion window contains t. The window is
// half-open: [StartsAt, EndsAt).
func (p Promotion) ActiveAt(t time.Time) bool {
	return !t.Before(p.StartsAt) && t.Before(p.EndsAt)
}

func (p Promotion) covers(kind domain.MarketKind) bool {
	if len(p.Markets) == 0 {
		return true
	}
	for _, m := range p.Markets {
		if m == kind {
			return true
		}
	}
	return false
}

// LiveModel holds the in-play pricing parameters. Probabilities are in
// basis points.
type LiveModel struct {
	MatchMinutes     int   `yaml:"match_minutes"`
	GoalChanceBP     int64 `yaml:"goal_chance_bp"`
	FollowOnGoalBP   int64 `yaml:"follow_on_goal_bp"`
	DerbyIntensityBP int64 `yaml:"derby_intensity_bp"`
	TrailingStepBP   int64 `yaml:"trailing_step_bp"`
	LeadWinStepBP    int64 `yaml:"lead_win_step_bp"`
	CornerStepBP     int64 `yaml:"corner_step_bp"`
	CardStepBP       int64 `yaml:"card_step_bp"`
	ShareFloorBP     int64 `yaml:"share_floor_bp"`
	ShareCeilBP      int64 `yaml:"share_ceil_bp"`
	OverroundPct     int64 `yaml:"overround_pct"`
}

// Config parameterises the engine.
type Config struct {
	Brackets         []Bracket   `yaml:"brackets"`
	FirstBetBonusPts int64       `yaml:"first_bet_bonus_pts"`
	DerbyBonusPts    int64       `yaml:"derby_bonus_pts"`
	FeaturedBonusPts int64       `yaml:"featured_bonus_pts"`
	Boosts           []BoostTier `yaml:"boosts"`
	MinOdds          int64       `yaml:"min_odds"`
	MaxOdds          int64       `yaml:"max_odds"`
	Live             LiveModel   `yaml:"live"`
}

// DefaultConfig returns the standard enhancement table and live model.
func DefaultConfig() Config {
	return Config{
		Brackets: []Bracket{
			{Below: 130, Factor: 21000},
			{Below: 160, Factor: 18000},
			{Below: 200, Factor: 15000},
			{Below: 300, Factor: 13000},
			{Below: 0, Factor: 11500},
		},
		FirstBetBonusPts: 10,
		DerbyBonusPts:    5,
		FeaturedBonusPts: 5,
		Boosts: []BoostTier{
			{Tier: 1, Factor: 11500, DiamondCost: 10, MinLevel: 1},
			{Tier: 2, Factor: 13000, DiamondCost: 25, MinLevel: 5},
			{Tier: 3, Factor: 15000, DiamondCost: 50, MinLevel: 10},
		},
		MinOdds: 105,
		MaxOdds: 800,
		Live: LiveModel{
			MatchMinutes:     90,
			GoalChanceBP:     9000,
			FollowOnGoalBP:   7000,
			DerbyIntensityBP: 11000,
			TrailingStepBP:   800,
			LeadWinStepBP:    1800,
			CornerStepBP:     500,
			CardStepBP:       400,
			ShareFloorBP:     1500,
			ShareCeilBP:      8500,
			OverroundPct:     106,
		},
	}
}

// Validate rejects tables the engine cannot price with.
func (c Config) Validate() error {
	if len(c.Brackets) == 0 {
		return fmt.Errorf("odds: no enhancement brackets")
	}
	if last := c.Brackets[len(c.Brackets)-1]; last.Below != 0 {
		return fmt.Errorf("odds: last enhancement bracket must be open-ended")
	}
	for i := 1; i < len(c.Brackets)-1; i++ {
		if c.Brackets[i].Below <= c.Brackets[i-1].Below {
			return fmt.Errorf("odds: enhancement brackets must ascend")
		}
	}
	if c.MinOdds <= 100 || c.MaxOdds <= c.MinOdds {
		return fmt.Errorf("odds: invalid clamp band [%d, %d]", c.MinOdds, c.MaxOdds)
	}
	for _, b := range c.Boosts {
		if b.Tier <= 0 || b.Factor <= One || b.DiamondCost <= 0 {
			return fmt.Errorf("odds: invalid boost tier %d", b.Tier)
		}
	}
	if c.Live.MatchMinutes <= 0 || c.Live.OverroundPct < 100 {
		return fmt.Errorf("odds: invalid live model")
	}
	return nil
}

// FormatFactor renders a basis-point factor as "x1.15".
func FormatFactor(f int64) string {
	return fmt.Sprintf("x%d.%02d", f/One, (f%One)/100)
}
