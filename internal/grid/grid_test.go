package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLocator(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
		want string
	}{
		{"origin", 0, 0, "JJ00aa"},
		{"south-west corner", -90, -180, "AA00aa"},
		{"north-east corner clamps", 90, 180, "RR99xx"},
		{"portland", 45.5, -122.6, "CN85qm"},
		{"london", 51.5074, -0.1278, "IO91wm"},
		{"field boundary", -80, -160, "BB00aa"},
		{"square boundary", -89, -178, "AA11aa"},
		{"latitude subsquare boundary", -89.5, -180, "AA00am"},
		{"longitude subsquare boundary", -90, -179.5, "AA00ga"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToLocator(tt.lat, tt.lon)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToLocatorDeterministic(t *testing.T) {
	first, err := ToLocator(-33.8688, 151.2093)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := ToLocator(-33.8688, 151.2093)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
	assert.Len(t, first, 6)
}

func TestToLocatorRejectsOutOfRange(t *testing.T) {
	inputs := [][2]float64{
		{90.0001, 0},
		{-91, 0},
		{0, 180.5},
		{0, -181},
		{math.NaN(), 0},
		{0, math.Inf(1)},
	}
	for _, in := range inputs {
		_, err := ToLocator(in[0], in[1])
		assert.ErrorIs(t, err, ErrOutOfRange, "lat=%v lon=%v", in[0], in[1])
	}
}

func TestToLocatorAlphabet(t *testing.T) {
	for lat := -90.0; lat <= 90; lat += 7.3 {
		for lon := -180.0; lon <= 180; lon += 11.7 {
			loc, err := ToLocator(lat, lon)
			require.NoError(t, err)
			require.Len(t, loc, 6)
			assert.True(t, loc[0] >= 'A' && loc[0] <= 'R', loc)
			assert.True(t, loc[1] >= 'A' && loc[1] <= 'R', loc)
			assert.True(t, loc[2] >= '0' && loc[2] <= '9', loc)
			assert.True(t, loc[3] >= '0' && loc[3] <= '9', loc)
			assert.True(t, loc[4] >= 'a' && loc[4] <= 'x', loc)
			assert.True(t, loc[5] >= 'a' && loc[5] <= 'x', loc)
		}
	}
}

func TestCenterRoundTrip(t *testing.T) {
	for _, loc := range []string{"JJ00aa", "CN85qm", "IO91wm", "AA00aa", "RR99xx", "FN31pr"} {
		lat, lon, err := Center(loc)
		require.NoError(t, err)

		got, err := ToLocator(lat, lon)
		require.NoError(t, err)
		assert.Equal(t, loc, got)
	}
}

func TestCenterShortLocators(t *testing.T) {
	lat, lon, err := Center("JJ")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, lat, 1e-9)
	assert.InDelta(t, 10.0, lon, 1e-9)

	lat, lon, err = Center("cn85")
	require.NoError(t, err)
	assert.InDelta(t, 45.5, lat, 1e-9)
	assert.InDelta(t, -123.0, lon, 1e-9)
}

func TestCenterInvalid(t *testing.T) {
	for _, loc := range []string{"", "J", "JJ0", "ZZ00", "JJa0", "JJ00zz", "JJ00aaa"} {
		_, _, err := Center(loc)
		assert.ErrorIs(t, err, ErrInvalidLocator, loc)
	}
}

func TestFromSystemInfo(t *testing.T) {
	assert.Equal(t, "CN85qm", FromSystemInfo("45.5,-122.6"))
	assert.Equal(t, "CN85qm", FromSystemInfo("45.5, -122.6\n"))
	assert.Equal(t, "GPS not fixed", FromSystemInfo("GPS not fixed"))
	assert.Equal(t, "91,0", FromSystemInfo("91,0"))
	assert.Equal(t, "north,west", FromSystemInfo("north,west"))
	assert.Equal(t, "", FromSystemInfo(""))
}
