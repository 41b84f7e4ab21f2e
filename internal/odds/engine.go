package odds

import (
	"fmt"
	"sort"
	"time"

	"github.com/betpoints/platform/internal/domain"
)

// ReasonKind identifies a pricing step.
type ReasonKind string

const (
	ReasonEnhanced  ReasonKind = "enhanced"
	ReasonFirstBet  ReasonKind = "first_bet"
	ReasonDerby     ReasonKind = "derby"
	ReasonFeatured  ReasonKind = "featured"
	ReasonPromotion ReasonKind = "promotion"
	ReasonBoost     ReasonKind = "diamond_boost"
	ReasonLive      ReasonKind = "live"
	ReasonClamped   ReasonKind = "clamped"
)

// Reason is one applied pricing step, in application order.
type Reason struct {
	Kind   ReasonKind `json:"kind"`
	Factor int64      `json:"factor,omitempty"`
	Label  string     `json:"label"`
}

// LiveState is the in-play match state used for live pricing.
type LiveState struct {
	Minute int
	Score  domain.Score
}

// Context is everything besides base odds that affects a price.
type Context struct {
	Derby      bool
	Featured   bool
	FirstBet   bool
	UserLevel  int
	Now        time.Time
	Promotions []Promotion
	Boost      domain.BoostTier
	// Live is nil for pre-match pricing.
	Live *LiveState
}

// Quote is the effective price of one outcome.
type Quote struct {
	Outcome domain.Outcome `json:"outcome"`
	Base    int64          `json:"base,omitempty"`
	Odds    int64          `json:"odds"`
	Clamped bool           `json:"odds_clamped"`
	Reasons []Reason       `json:"reasons"`
}

// Result holds the quotes for one market.
type Result struct {
	Market domain.MarketKey `json:"market"`
	Quotes []Quote          `json:"quotes"`
}

// Quote returns the quote for outcome.
func (r *Result) Quote(outcome domain.Outcome) (Quote, bool) {
	for _, q := range r.Quotes {
		if q.Outcome == outcome {
			return q, true
		}
	}
	return Quote{}, false
}

// Engine prices markets. It performs no I/O and holds no mutable state.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine from a validated config.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	brackets := make([]Bracket, len(cfg.Brackets))
	copy(brackets, cfg.Brackets)
	cfg.Brackets = brackets
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// BoostTier looks up a boost tier.
func (e *Engine) BoostTier(tier domain.BoostTier) (BoostTier, error) {
	for _, b := range e.cfg.Boosts {
		if b.Tier == tier {
			return b, nil
		}
	}
	return BoostTier{}, fmt.Errorf("unknown boost tier %d", tier)
}

// ComputeOdds prices every outcome of a market. Pre-match markets are
// priced from base; live markets are recomputed from ctx.Live and ignore
// base. Steps apply in a fixed order and each step floors to hundredths.
func (e *Engine) ComputeOdds(market domain.MarketKey, base map[domain.Outcome]int64, ctx Context) (*Result, error) {
	spec, err := market.Kind.Spec()
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	var boost *BoostTier
	if ctx.Boost > 0 {
		b, err := e.BoostTier(ctx.Boost)
		if err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		boost = &b
	}

	result := &Result{Market: market}

	if ctx.Live != nil {
		if !spec.Live {
			return nil, domain.ErrOddsUnavailable(fmt.Sprintf("market %s is not priced in-play", market))
		}
		for _, outcome := range spec.Outcomes {
			p, err := e.liveProbability(market, outcome, *ctx.Live, ctx.Derby)
			if err != nil {
				return nil, err
			}
			price := e.fromProbability(p)
			reasons := []Reason{{Kind: ReasonLive, Label: fmt.Sprintf("live %d' %d-%d", ctx.Live.Minute, ctx.Live.Score.Home, ctx.Live.Score.Away)}}
			result.Quotes = append(result.Quotes, e.finish(outcome, 0, price, reasons, market, ctx, boost, false))
		}
		return result, nil
	}

	if !spec.PreMatch {
		return nil, domain.ErrOddsUnavailable(fmt.Sprintf("market %s is in-play only", market))
	}
	if len(base) == 0 {
		return nil, domain.ErrOddsUnavailable(fmt.Sprintf("no base odds for %s", market))
	}

	outcomes := make([]domain.Outcome, 0, len(base))
	for o := range base {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })

	for _, outcome := range outcomes {
		b := base[outcome]
		if b <= 100 {
			return nil, domain.ErrOddsUnavailable(fmt.Sprintf("base odds %d for %s/%s are not a price", b, market, outcome))
		}
		f := e.enhancement(b)
		price := b * f / One
		reasons := []Reason{{Kind: ReasonEnhanced, Factor: f, Label: "enhanced odds " + FormatFactor(f)}}
		result.Quotes = append(result.Quotes, e.finish(outcome, b, price, reasons, market, ctx, boost, true))
	}
	return result, nil
}

// ComputeOutcome prices a single outcome, failing with OddsUnavailable if
// the market does not offer it.
func (e *Engine) ComputeOutcome(market domain.MarketKey, outcome domain.Outcome, base map[domain.Outcome]int64, ctx Context) (Quote, error) {
	if ctx.Live == nil {
		if _, ok := base[outcome]; !ok {
			return Quote{}, domain.ErrOddsUnavailable(fmt.Sprintf("no base odds for %s/%s", market, outcome))
		}
	}
	res, err := e.ComputeOdds(market, base, ctx)
	if err != nil {
		return Quote{}, err
	}
	q, ok := res.Quote(outcome)
	if !ok {
		return Quote{}, domain.ErrOddsUnavailable(fmt.Sprintf("outcome %s not offered on %s", outcome, market))
	}
	return q, nil
}

// finish applies bonus points, promotion, the clamp band and the boost.
func (e *Engine) finish(outcome domain.Outcome, base, price int64, reasons []Reason, market domain.MarketKey, ctx Context, boost *BoostTier, preMatch bool) Quote {
	var pts int64
	if ctx.FirstBet && e.cfg.FirstBetBonusPts > 0 {
		pts += e.cfg.FirstBetBonusPts
		reasons = append(reasons, Reason{Kind: ReasonFirstBet, Factor: One + e.cfg.FirstBetBonusPts*100, Label: fmt.Sprintf("first bet +%d%%", e.cfg.FirstBetBonusPts)})
	}
	if preMatch && ctx.Derby && e.cfg.DerbyBonusPts > 0 {
		pts += e.cfg.DerbyBonusPts
		reasons = append(reasons, Reason{Kind: ReasonDerby, Factor: One + e.cfg.DerbyBonusPts*100, Label: fmt.Sprintf("derby +%d%%", e.cfg.DerbyBonusPts)})
	}
	if ctx.Featured && e.cfg.FeaturedBonusPts > 0 {
		pts += e.cfg.FeaturedBonusPts
		reasons = append(reasons, Reason{Kind: ReasonFeatured, Factor: One + e.cfg.FeaturedBonusPts*100, Label: fmt.Sprintf("featured match +%d%%", e.cfg.FeaturedBonusPts)})
	}
	if pts > 0 {
		price = price * (100 + pts) / 100
	}

	if promo, ok := BestPromotion(ctx.Promotions, market.Kind, ctx.Now); ok {
		price = price * promo.Factor / One
		reasons = append(reasons, Reason{Kind: ReasonPromotion, Factor: promo.Factor, Label: "promotion " + promo.ID + " " + FormatFactor(promo.Factor)})
	}

	clamped := false
	if price < e.cfg.MinOdds {
		price, clamped = e.cfg.MinOdds, true
	} else if price > e.cfg.MaxOdds {
		price, clamped = e.cfg.MaxOdds, true
	}
	if clamped {
		reasons = append(reasons, Reason{Kind: ReasonClamped, Label: fmt.Sprintf("limited to %d.%02d", price/100, price%100)})
	}

	// The band bounds the selection price a bet freezes. A boost is bought
	// on top of it at bet level, so it comes after the clamp and uses the
	// same rounding as the placed bet's total.
	if boost != nil {
		price = TotalOdds([]int64{price}, boost.Factor)
		reasons = append(reasons, Reason{Kind: ReasonBoost, Factor: boost.Factor, Label: "diamond boost " + FormatFactor(boost.Factor)})
	}

	return Quote{Outcome: outcome, Base: base, Odds: price, Clamped: clamped, Reasons: reasons}
}

// enhancement picks the standing multiplier for a base price. Lower odds
// get the larger multiplier.
func (e *Engine) enhancement(base int64) int64 {
	for _, b := range e.cfg.Brackets {
		if b.Below == 0 || base < b.Below {
			return b.Factor
		}
	}
	return One
}

// BestPromotion returns the single largest promotion active at now for the
// market. Promotions never stack.
func BestPromotion(promos []Promotion, kind domain.MarketKind, now time.Time) (Promotion, bool) {
	var best Promotion
	found := false
	for _, p := range promos {
		if p.Factor <= One || !p.ActiveAt(now) || !p.covers(kind) {
			continue
		}
		if !found || p.Factor > best.Factor || (p.Factor == best.Factor && p.ID < best.ID) {
			best, found = p, true
		}
	}
	return best, found
}
