package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityParsing(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Quantity
	}{
		{"integer", `12`, Quantity(120000)},
		{"fraction", `12.5`, Quantity(125000)},
		{"string form", `"3.1415"`, Quantity(31415)},
		{"truncates extra digits", `0.00019`, Quantity(1)},
		{"negative", `-7.25`, Quantity(-72500)},
		{"null", `null`, Quantity(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			require.NoError(t, json.Unmarshal([]byte(tt.in), &q))
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestQuantityRoundTrip(t *testing.T) {
	q := NewQuantityFromFloat64(40.0005)
	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, "40.0005", string(data))

	var back Quantity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, q, back)
}

func TestQuantityToleranceComparisons(t *testing.T) {
	a := NewQuantityFromFloat64(10)
	b := NewQuantityFromFloat64(9.9995)

	assert.True(t, a.EqWithin(b))
	assert.True(t, b.GteWithin(a))
	assert.True(t, a.LteWithin(b))

	c := NewQuantityFromFloat64(9.99)
	assert.False(t, a.EqWithin(c))
	assert.False(t, c.GteWithin(a))
}

func TestQuantityFloatNoiseAbsorbed(t *testing.T) {
	// 0.1+0.2 style float noise must round away at 4 decimal places.
	q := NewQuantityFromFloat64(0.1 + 0.2)
	assert.Equal(t, NewQuantityFromFloat64(0.3), q)
}

func TestQuantityClamped(t *testing.T) {
	assert.Equal(t, Quantity(0), Quantity(-5).Clamped())
	assert.Equal(t, Quantity(5), Quantity(5).Clamped())
}

func TestMinMaxQuantity(t *testing.T) {
	assert.Equal(t, Quantity(7), MaxQuantity(3, 7))
	assert.Equal(t, Quantity(3), MinQuantity(3, 7))
}
