package domain

import "fmt"

// MarketKind identifies a betting market.
type MarketKind string

const (
	MarketMatchResult    MarketKind = "MATCH_RESULT"
	MarketTotalGoals     MarketKind = "TOTAL_GOALS"
	MarketBothTeamsScore MarketKind = "BOTH_TEAMS_SCORE"
	MarketNextGoal       MarketKind = "NEXT_GOAL"
	MarketNextCorner     MarketKind = "NEXT_CORNER"
	MarketNextCard       MarketKind = "NEXT_CARD"
)

// Outcome is the side of a market a selection backs.
type Outcome string

const (
	OutcomeHome  Outcome = "HOME"
	OutcomeDraw  Outcome = "DRAW"
	OutcomeAway  Outcome = "AWAY"
	OutcomeOver  Outcome = "OVER"
	OutcomeUnder Outcome = "UNDER"
	OutcomeYes   Outcome = "YES"
	OutcomeNo    Outcome = "NO"
	OutcomeNone  Outcome = "NONE"
)

// MarketSpec describes what a market accepts.
type MarketSpec struct {
	Outcomes  []Outcome
	PreMatch  bool
	Live      bool
	NeedsLine bool
}

var marketSpecs = map[MarketKind]MarketSpec{
	MarketMatchResult:    {Outcomes: []Outcome{OutcomeHome, OutcomeDraw, OutcomeAway}, PreMatch: true, Live: true},
	MarketTotalGoals:     {Outcomes: []Outcome{OutcomeOver, OutcomeUnder}, PreMatch: true, Live: true, NeedsLine: true},
	MarketBothTeamsScore: {Outcomes: []Outcome{OutcomeYes, OutcomeNo}, PreMatch: true},
	MarketNextGoal:       {Outcomes: []Outcome{OutcomeHome, OutcomeAway, OutcomeNone}, Live: true},
	MarketNextCorner:     {Outcomes: []Outcome{OutcomeHome, OutcomeAway}, Live: true},
	MarketNextCard:       {Outcomes: []Outcome{OutcomeHome, OutcomeAway}, Live: true},
}

// Spec returns the market definition. Unknown markets fail loudly.
func (m MarketKind) Spec() (MarketSpec, error) {
	spec, ok := marketSpecs[m]
	if !ok {
		return MarketSpec{}, fmt.Errorf("unknown market %q", m)
	}
	return spec, nil
}

// LiveOnly reports whether the market only exists in-play.
func (m MarketKind) LiveOnly() bool {
	spec, err := m.Spec()
	return err == nil && spec.Live && !spec.PreMatch
}

// MarketKey addresses a market on a match. Line is in tenths of a goal
// (25 = 2.5) and zero for markets without a line.
type MarketKey struct {
	Kind MarketKind `json:"market" yaml:"market"`
	Line int        `json:"line,omitempty" yaml:"line,omitempty"`
}

func (k MarketKey) String() string {
	if k.Line == 0 {
		return string(k.Kind)
	}
	return fmt.Sprintf("%s@%d", k.Kind, k.Line)
}

// ValidateSelectionShape checks market, line and outcome against the
// catalogue. It does not look at match state.
func ValidateSelectionShape(key MarketKey, outcome Outcome) error {
	spec, err := key.Kind.Spec()
	if err != nil {
		return err
	}
	if spec.NeedsLine {
		if key.Line <= 0 || key.Line%10 != 5 {
			return fmt.Errorf("market %s needs a half-goal line in tenths, got %d", key.Kind, key.Line)
		}
	} else if key.Line != 0 {
		return fmt.Errorf("market %s takes no line", key.Kind)
	}
	for _, o := range spec.Outcomes {
		if o == outcome {
			return nil
		}
	}
	return fmt.Errorf("outcome %q is not valid for market %s", outcome, key.Kind)
}
