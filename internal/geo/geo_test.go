package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Coordinate
		expected float64
		delta    float64
	}{
		{
			name:     "same point",
			a:        Coordinate{Latitude: 35.2271, Longitude: -80.8431},
			b:        Coordinate{Latitude: 35.2271, Longitude: -80.8431},
			expected: 0,
			delta:    1e-9,
		},
		{
			name:     "charlotte to raleigh",
			a:        Coordinate{Latitude: 35.2271, Longitude: -80.8431},
			b:        Coordinate{Latitude: 35.7796, Longitude: -78.6382},
			expected: 129.76,
			delta:    0.1,
		},
		{
			name:     "one degree of latitude",
			a:        Coordinate{Latitude: 0, Longitude: 0},
			b:        Coordinate{Latitude: 1, Longitude: 0},
			expected: 69.09,
			delta:    0.05,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.a, tt.b), tt.delta)
		})
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	points := []Coordinate{
		{Latitude: 35.2271, Longitude: -80.8431},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 89.9, Longitude: 10},
		{Latitude: -89.9, Longitude: -170},
		{Latitude: 0, Longitude: 180},
		{Latitude: 0, Longitude: -180},
	}

	for _, a := range points {
		assert.InDelta(t, 0, Distance(a, a), 1e-9)
		for _, b := range points {
			assert.Equal(t, Distance(a, b), Distance(b, a))
		}
	}
}

func TestBoundingBoxContainsCenter(t *testing.T) {
	centers := []Coordinate{
		{Latitude: 35.2271, Longitude: -80.8431},
		{Latitude: 0, Longitude: 0},
		{Latitude: 64.1466, Longitude: -21.9426},
		{Latitude: -54.8019, Longitude: -68.3030},
		{Latitude: 89.99, Longitude: 45},
	}
	radii := []float64{MinRadiusMiles, 5, 40, 123.4, MaxRadiusMiles}

	for _, c := range centers {
		for _, r := range radii {
			box := NewBoundingBox(c, r)
			assert.True(t, box.Contains(c), "center %+v radius %v", c, r)
			assert.Less(t, box.MinLat, box.MaxLat)
			assert.Less(t, box.MinLng, box.MaxLng)
		}
	}
}

func TestBoundingBoxDeltas(t *testing.T) {
	box := NewBoundingBox(Coordinate{Latitude: 0, Longitude: 0}, 10)

	radiusKm := 10 * KilometersPerMile
	assert.InDelta(t, radiusKm/110.574, box.MaxLat, 1e-12)
	assert.InDelta(t, radiusKm/111.32, box.MaxLng, 1e-12)

	// longitude delta widens with latitude
	north := NewBoundingBox(Coordinate{Latitude: 60, Longitude: 0}, 10)
	assert.InDelta(t, 2*box.MaxLng, north.MaxLng, 1e-9)
	assert.InDelta(t, box.MaxLat, north.MaxLat-60, 1e-9)
}

func TestMilesToMeters(t *testing.T) {
	assert.Equal(t, 1609, MilesToMeters(1))
	assert.Equal(t, 8047, MilesToMeters(5))
	assert.Equal(t, 64374, MilesToMeters(40))
	assert.Equal(t, 0, MilesToMeters(0))
}

func TestClampRadius(t *testing.T) {
	assert.Equal(t, 1.0, ClampRadius(0.2))
	assert.Equal(t, 1.0, ClampRadius(-5))
	assert.Equal(t, 25.0, ClampRadius(25))
	assert.Equal(t, 200.0, ClampRadius(500))
}

func TestCoordinateValidate(t *testing.T) {
	tests := []struct {
		name    string
		coord   Coordinate
		wantErr bool
	}{
		{"valid", Coordinate{Latitude: 35.2, Longitude: -80.8}, false},
		{"poles and antimeridian", Coordinate{Latitude: 90, Longitude: -180}, false},
		{"latitude too high", Coordinate{Latitude: 90.1, Longitude: 0}, true},
		{"longitude too low", Coordinate{Latitude: 0, Longitude: -180.5}, true},
		{"nan latitude", Coordinate{Latitude: math.NaN(), Longitude: 0}, true},
		{"infinite longitude", Coordinate{Latitude: 0, Longitude: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coord.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
