// Package content loads the static game tables: odds enhancement, limit
// tiers, level ladder and promotions.
package content

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/betpoints/platform/internal/ledger"
	"github.com/betpoints/platform/internal/odds"
	"github.com/betpoints/platform/internal/policy"
)

//go:embed default.yaml
var defaultYAML []byte

// Content is the full set of static tables.
type Content struct {
	Odds        odds.Config        `yaml:"odds"`
	Limits      policy.Table       `yaml:"limits"`
	Progression ledger.Progression `yaml:"progression"`
	Promotions  []odds.Promotion   `yaml:"promotions"`
}

// Default returns the embedded content.
func Default() (*Content, error) {
	return Parse(defaultYAML)
}

// Load reads content from path, or the embedded default when path is empty.
func Load(path string) (*Content, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a content document.
func Parse(data []byte) (*Content, error) {
	var c Content
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every table.
func (c *Content) Validate() error {
	if err := c.Odds.Validate(); err != nil {
		return err
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if err := c.Progression.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Promotions))
	for _, p := range c.Promotions {
		switch {
		case p.ID == "":
			return fmt.Errorf("content: promotion without id")
		case seen[p.ID]:
			return fmt.Errorf("content: duplicate promotion %q", p.ID)
		case p.Factor <= odds.One:
			return fmt.Errorf("content: promotion %q factor %d must exceed %d", p.ID, p.Factor, odds.One)
		case !p.EndsAt.After(p.StartsAt):
			return fmt.Errorf("content: promotion %q ends before it starts", p.ID)
		}
		for _, m := range p.Markets {
			if _, err := m.Spec(); err != nil {
				return fmt.Errorf("content: promotion %q: %w", p.ID, err)
			}
		}
		seen[p.ID] = true
	}
	return nil
}

// ActivePromotions returns the promotions whose window contains now.
func (c *Content) ActivePromotions(now time.Time) []odds.Promotion {
	var active []odds.Promotion
	for _, p := range c.Promotions {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}
	return active
}
