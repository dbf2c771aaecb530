// Package units converts base-unit stock quantities into packaging tier
// breakdowns and back. Quantities are always tracked in a single base unit
// (e.g. piece); higher tiers (sheet, box) are derived via per-product
// multipliers.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTier indicates a conversion was requested for a tier name that
// is not part of the packaging descriptor.
var ErrUnknownTier = errors.New("units: unknown packaging tier")

// ErrInvalidPackaging indicates a descriptor that violates the tier rules.
var ErrInvalidPackaging = errors.New("units: invalid packaging descriptor")

// ErrNegativeQuantity indicates a negative quantity was supplied.
var ErrNegativeQuantity = errors.New("units: quantity must be >= 0")

// Tier is one packaging level: a name and its multiplier relative to the
// base unit.
type Tier struct {
	Name       string `json:"name"`
	Multiplier int64  `json:"multiplier"`
}

// TierCount pairs a tier name with a unit count in a breakdown result.
type TierCount struct {
	Tier  string `json:"tier"`
	Count int64  `json:"count"`
}

// Packaging is a validated, ordered packaging descriptor. The zero value is
// usable and behaves as a single base tier with multiplier 1.
type Packaging struct {
	tiers []Tier
}

// DefaultBaseTier names the implicit tier used when a product carries no
// packaging descriptor.
const DefaultBaseTier = "piece"

// NewPackaging validates tiers and builds a Packaging. Multipliers must
// start at 1 and be strictly increasing; tier names must be non-empty and
// unique (case-insensitive). An empty slice yields the degenerate
// single-base-tier descriptor.
func NewPackaging(tiers []Tier) (Packaging, error) {
	if len(tiers) == 0 {
		return Packaging{}, nil
	}
	seen := make(map[string]struct{}, len(tiers))
	for i, tier := range tiers {
		name := strings.ToLower(strings.TrimSpace(tier.Name))
		if name == "" {
			return Packaging{}, fmt.Errorf("%w: tier %d has empty name", ErrInvalidPackaging, i)
		}
		if _, dup := seen[name]; dup {
			return Packaging{}, fmt.Errorf("%w: duplicate tier %q", ErrInvalidPackaging, tier.Name)
		}
		seen[name] = struct{}{}
		if i == 0 && tier.Multiplier != 1 {
			return Packaging{}, fmt.Errorf("%w: base tier multiplier must be 1, got %d", ErrInvalidPackaging, tier.Multiplier)
		}
		if i > 0 && tier.Multiplier <= tiers[i-1].Multiplier {
			return Packaging{}, fmt.Errorf("%w: multipliers must be strictly increasing (%q=%d after %d)",
				ErrInvalidPackaging, tier.Name, tier.Multiplier, tiers[i-1].Multiplier)
		}
	}
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return Packaging{tiers: cp}, nil
}

// Tiers returns the descriptor in ascending multiplier order. A descriptor
// without configured tiers reports the implicit base tier.
func (p Packaging) Tiers() []Tier {
	if len(p.tiers) == 0 {
		return []Tier{{Name: DefaultBaseTier, Multiplier: 1}}
	}
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// Multiplier looks up a tier multiplier by name, case-insensitively.
func (p Packaging) Multiplier(tierName string) (int64, bool) {
	want := strings.ToLower(strings.TrimSpace(tierName))
	for _, tier := range p.Tiers() {
		if strings.ToLower(tier.Name) == want {
			return tier.Multiplier, true
		}
	}
	return 0, false
}

// ToBaseUnits converts a quantity expressed in the named tier to base
// units.
func (p Packaging) ToBaseUnits(quantity int64, tierName string) (int64, error) {
	if quantity < 0 {
		return 0, ErrNegativeQuantity
	}
	mult, ok := p.Multiplier(tierName)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, tierName)
	}
	return quantity * mult, nil
}

// Breakdown expresses a base-unit quantity across the configured tiers,
// dividing greedily from the highest tier downward and carrying the
// remainder. Every tier appears in the result, highest first, including
// zero counts.
func (p Packaging) Breakdown(quantityInBaseUnits int64) ([]TierCount, error) {
	if quantityInBaseUnits < 0 {
		return nil, ErrNegativeQuantity
	}
	tiers := p.Tiers()
	out := make([]TierCount, 0, len(tiers))
	remainder := quantityInBaseUnits
	for i := len(tiers) - 1; i >= 0; i-- {
		tier := tiers[i]
		out = append(out, TierCount{Tier: tier.Name, Count: remainder / tier.Multiplier})
		remainder %= tier.Multiplier
	}
	return out, nil
}

// TotalBaseUnits reconstructs the base-unit quantity a breakdown
// represents.
func (p Packaging) TotalBaseUnits(breakdown []TierCount) (int64, error) {
	var total int64
	for _, tc := range breakdown {
		base, err := p.ToBaseUnits(tc.Count, tc.Tier)
		if err != nil {
			return 0, err
		}
		total += base
	}
	return total, nil
}
