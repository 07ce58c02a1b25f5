// Package overpass queries the OpenStreetMap Overpass API for fuel amenities.
package overpass

import (
	"fmt"
	"strconv"

	"github.com/bbernstein/gotgas/backend-go/internal/geo"
)

const DefaultURL = "https://overpass-api.de/api/interpreter"

// BuildQuery returns the Overpass QL selecting fuel nodes, ways and relations
// within radiusMeters of center, with a center point emitted for ways and relations.
func BuildQuery(center geo.Coordinate, radiusMeters int) string {
	around := fmt.Sprintf("(around:%d,%s,%s)", radiusMeters, formatDegrees(center.Latitude), formatDegrees(center.Longitude))
	return "[out:json][timeout:25];(" +
		`node["amenity"="fuel"]` + around + ";" +
		`way["amenity"="fuel"]` + around + ";" +
		`relation["amenity"="fuel"]` + around + ";" +
		");out center;"
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
