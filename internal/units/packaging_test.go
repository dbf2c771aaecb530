package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pharmacyPackaging(t *testing.T) Packaging {
	t.Helper()
	p, err := NewPackaging([]Tier{
		{Name: "piece", Multiplier: 1},
		{Name: "sheet", Multiplier: 10},
		{Name: "box", Multiplier: 100},
	})
	require.NoError(t, err)
	return p
}

func TestNewPackagingValidation(t *testing.T) {
	_, err := NewPackaging([]Tier{{Name: "piece", Multiplier: 2}})
	assert.ErrorIs(t, err, ErrInvalidPackaging)

	_, err = NewPackaging([]Tier{
		{Name: "piece", Multiplier: 1},
		{Name: "sheet", Multiplier: 10},
		{Name: "box", Multiplier: 10},
	})
	assert.ErrorIs(t, err, ErrInvalidPackaging)

	_, err = NewPackaging([]Tier{
		{Name: "piece", Multiplier: 1},
		{Name: "Piece", Multiplier: 10},
	})
	assert.ErrorIs(t, err, ErrInvalidPackaging)

	_, err = NewPackaging([]Tier{
		{Name: "piece", Multiplier: 1},
		{Name: "", Multiplier: 10},
	})
	assert.ErrorIs(t, err, ErrInvalidPackaging)
}

func TestBreakdown(t *testing.T) {
	p := pharmacyPackaging(t)

	got, err := p.Breakdown(1234)
	require.NoError(t, err)
	assert.Equal(t, []TierCount{
		{Tier: "box", Count: 12},
		{Tier: "sheet", Count: 3},
		{Tier: "piece", Count: 4},
	}, got)

	got, err = p.Breakdown(0)
	require.NoError(t, err)
	assert.Equal(t, []TierCount{
		{Tier: "box", Count: 0},
		{Tier: "sheet", Count: 0},
		{Tier: "piece", Count: 0},
	}, got)

	_, err = p.Breakdown(-1)
	assert.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestBreakdownWithoutDescriptor(t *testing.T) {
	var p Packaging

	got, err := p.Breakdown(42)
	require.NoError(t, err)
	assert.Equal(t, []TierCount{{Tier: "piece", Count: 42}}, got)
}

func TestToBaseUnits(t *testing.T) {
	p := pharmacyPackaging(t)

	base, err := p.ToBaseUnits(3, "sheet")
	require.NoError(t, err)
	assert.Equal(t, int64(30), base)

	base, err = p.ToBaseUnits(2, "BOX")
	require.NoError(t, err)
	assert.Equal(t, int64(200), base)

	_, err = p.ToBaseUnits(1, "pallet")
	assert.ErrorIs(t, err, ErrUnknownTier)

	_, err = p.ToBaseUnits(-1, "sheet")
	assert.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestConversionRoundTrip(t *testing.T) {
	p := pharmacyPackaging(t)

	for _, tier := range p.Tiers() {
		for _, n := range []int64{1, 7, 13, 99} {
			base, err := p.ToBaseUnits(n, tier.Name)
			require.NoError(t, err)

			breakdown, err := p.Breakdown(base)
			require.NoError(t, err)

			total, err := p.TotalBaseUnits(breakdown)
			require.NoError(t, err)
			assert.Equal(t, n*tier.Multiplier, total,
				"tier=%s n=%d", tier.Name, n)
		}
	}
}
