package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var home = Zone{Name: "home", Lat: 0, Lon: 0, RadiusMeters: 50}

func TestMatch_AtCentre(t *testing.T) {
	z, ok, err := Match(Position{Lat: 0, Lon: 0}, []Zone{home})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "home", z.Name)
}

func TestMatch_FarAway(t *testing.T) {
	p := Destination(home.Center(), 90, 5000)
	_, ok, err := Match(p, []Zone{home})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_EmptyZones(t *testing.T) {
	_, ok, err := Match(Position{Lat: 1, Lon: 1}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_BoundaryInclusive(t *testing.T) {
	p := Destination(home.Center(), 37, 50)
	exact := home
	exact.RadiusMeters = Distance(p, home.Center())
	assert.InDelta(t, 50.0, exact.RadiusMeters, 1e-6)

	z, ok, err := Match(p, []Zone{exact})
	require.NoError(t, err)
	require.True(t, ok, "position exactly on the boundary must match")
	assert.Equal(t, "home", z.Name)
}

func TestMatch_JustOutsideBoundary(t *testing.T) {
	p := Destination(home.Center(), 37, 50.01)
	_, ok, err := Match(p, []Zone{home})
	require.NoError(t, err)
	assert.False(t, ok)

	inside := Destination(home.Center(), 37, 49.99)
	_, ok, err = Match(inside, []Zone{home})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatch_FirstInIterationOrderWins(t *testing.T) {
	p := Position{Lat: 0, Lon: 0}
	near := Zone{Name: "near", Lat: 0, Lon: 0, RadiusMeters: 10}
	wide := Zone{Name: "wide", Lat: 0, Lon: 0.0005, RadiusMeters: 500}

	z, ok, err := Match(p, []Zone{wide, near})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "wide", z.Name, "first qualifying zone wins, not the closest")
}

func TestMatch_SkipsDegenerateZones(t *testing.T) {
	p := Position{Lat: 0, Lon: 0}
	zones := []Zone{
		{Name: "zero", RadiusMeters: 0},
		{Name: "negative", RadiusMeters: -1},
		home,
	}
	z, ok, err := Match(p, zones)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "home", z.Name)
}

func TestMatch_InvalidPosition(t *testing.T) {
	for _, p := range []Position{
		{Lat: math.NaN(), Lon: 0},
		{Lat: 0, Lon: 200},
		{Lat: -91, Lon: 0},
	} {
		_, ok, err := Match(p, []Zone{home})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.False(t, ok)
	}
}

func TestMatch_AgreesWithDistance(t *testing.T) {
	zones := []Zone{
		{Name: "a", Lat: 10, Lon: 10, RadiusMeters: 100},
		{Name: "b", Lat: 10.001, Lon: 10.001, RadiusMeters: 75},
		{Name: "c", Lat: -45, Lon: 170, RadiusMeters: 1000},
	}
	for _, bearing := range []float64{0, 90, 180, 270} {
		for _, d := range []float64{0, 50, 99, 101, 150, 400} {
			p := Destination(zones[0].Center(), bearing, d)

			want := false
			for _, z := range zones {
				if Distance(p, z.Center()) <= z.RadiusMeters {
					want = true
					break
				}
			}

			_, ok, err := Match(p, zones)
			require.NoError(t, err)
			assert.Equal(t, want, ok, "bearing=%v d=%v", bearing, d)
		}
	}
}
