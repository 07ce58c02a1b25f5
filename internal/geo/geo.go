package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusMiles is the mean Earth radius used for great-circle distances
	EarthRadiusMiles = 3958.8

	KilometersPerMile = 1.609344
	MetersPerMile     = 1609.344

	// km per degree of latitude, and per degree of longitude at the equator
	kmPerDegreeLatitude  = 110.574
	kmPerDegreeLongitude = 111.32

	MinRadiusMiles = 1.0
	MaxRadiusMiles = 200.0
)

// Coordinate is a WGS-84 point. Values are never mutated after creation.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BoundingBox is an axis-aligned degree rectangle around a search center
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

// Validate rejects non-finite and out-of-range coordinates
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %v", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %v", c.Longitude)
	}
	return nil
}

// Distance returns the haversine great-circle distance between a and b in miles.
func Distance(a, b Coordinate) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMiles * c
}

// NewBoundingBox approximates the circle of radiusMiles around center. The
// longitude delta grows without bound as |latitude| approaches 90, so the box
// only scopes upstream queries and is never the membership test.
func NewBoundingBox(center Coordinate, radiusMiles float64) BoundingBox {
	radiusKm := MilesToKilometers(radiusMiles)
	latDelta := radiusKm / kmPerDegreeLatitude
	lngDelta := radiusKm / (kmPerDegreeLongitude * math.Cos(toRadians(center.Latitude)))

	return BoundingBox{
		MinLat: center.Latitude - latDelta,
		MaxLat: center.Latitude + latDelta,
		MinLng: center.Longitude - lngDelta,
		MaxLng: center.Longitude + lngDelta,
	}
}

// Contains reports whether c lies inside the box, edges included
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat &&
		c.Longitude >= b.MinLng && c.Longitude <= b.MaxLng
}

func MilesToKilometers(miles float64) float64 {
	return miles * KilometersPerMile
}

// MilesToMeters converts and rounds to whole meters for provider queries
func MilesToMeters(miles float64) int {
	return int(math.Round(miles * MetersPerMile))
}

// ClampRadius limits a search radius to [MinRadiusMiles, MaxRadiusMiles]
func ClampRadius(radiusMiles float64) float64 {
	return math.Min(MaxRadiusMiles, math.Max(MinRadiusMiles, radiusMiles))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
