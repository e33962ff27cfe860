package netcdf

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAttrs implements the decoder's attribute lookup for tests.
type fakeAttrs map[string]any

func (f fakeAttrs) Get(key string) (any, bool) {
	v, ok := f[key]
	return v, ok
}

func (f fakeAttrs) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	return keys
}

func TestDecodeCube_PackedInt16(t *testing.T) {
	// ERA5 packing: value = raw*scale + offset, fill sentinel -> NaN.
	raw := [][][]int16{{{100, -32767}}}
	attrs := fakeAttrs{
		"scale_factor": 0.01,
		"add_offset":   250.0,
		"_FillValue":   int16(-32767),
	}

	cube, err := decodeCube(raw, attrs)
	require.NoError(t, err)
	require.Len(t, cube, 1)
	assert.InDelta(t, 251.0, cube[0][0][0], 1e-9)
	assert.True(t, math.IsNaN(cube[0][0][1]))
}

func TestDecodeCube_PlainFloat32(t *testing.T) {
	raw := [][][]float32{{{288.5, float32(math.NaN())}}}
	cube, err := decodeCube(raw, fakeAttrs{})
	require.NoError(t, err)
	assert.InDelta(t, 288.5, cube[0][0][0], 1e-6)
	assert.True(t, math.IsNaN(cube[0][0][1]))
}

func TestDecodeCube_Float64WithMissingValue(t *testing.T) {
	raw := [][][]float64{{{12.5, -9999.0}}}
	cube, err := decodeCube(raw, fakeAttrs{"missing_value": -9999.0})
	require.NoError(t, err)
	assert.InDelta(t, 12.5, cube[0][0][0], 1e-9)
	assert.True(t, math.IsNaN(cube[0][0][1]))
}

func TestDecodeCube_UnsupportedType(t *testing.T) {
	_, err := decodeCube("not a cube", fakeAttrs{})
	assert.Error(t, err)
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units     string
		wantStep  time.Duration
		wantEpoch time.Time
	}{
		{
			units:     "hours since 1900-01-01 00:00:00.0",
			wantStep:  time.Hour,
			wantEpoch: time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			units:     "seconds since 1970-01-01",
			wantStep:  time.Second,
			wantEpoch: time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			units:     "days since 2000-01-01 12:00:00",
			wantStep:  24 * time.Hour,
			wantEpoch: time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			step, epoch, err := parseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStep, step)
			assert.True(t, epoch.Equal(tt.wantEpoch), "epoch %v", epoch)
		})
	}
}

func TestParseTimeUnits_Invalid(t *testing.T) {
	for _, units := range []string{"", "fortnights since 1900-01-01", "hours", "hours since eventually"} {
		_, _, err := parseTimeUnits(units)
		assert.Error(t, err, "units %q", units)
	}
}

func TestToFloat64s(t *testing.T) {
	got, err := toFloat64s([]float32{1.5, 2.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, got)

	got, err = toFloat64s([]int32{7})
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, got)

	_, err = toFloat64s(42)
	assert.Error(t, err)
}

func TestAttrFloat_Widths(t *testing.T) {
	attrs := fakeAttrs{
		"scalar32": float32(0.5),
		"arr16":    []int16{-32767},
		"str":      "nope",
	}

	v, ok := attrFloat(attrs, "scalar32")
	assert.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-9)

	v, ok = attrFloat(attrs, "arr16")
	assert.True(t, ok)
	assert.InDelta(t, -32767, v, 1e-9)

	_, ok = attrFloat(attrs, "str")
	assert.False(t, ok)

	// First present name wins.
	v, ok = attrFloat(attrs, "absent", "scalar32")
	assert.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-9)
}
