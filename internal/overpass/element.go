package overpass

import (
	"strconv"

	"github.com/bbernstein/gotgas/backend-go/internal/geo"
)

type Kind string

const (
	KindNode     Kind = "node"
	KindWay      Kind = "way"
	KindRelation Kind = "relation"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Element is one raw record from the provider. Nodes carry lat/lon; ways and
// relations carry a center or a geometry list instead.
type Element struct {
	Type     Kind              `json:"type"`
	ID       int64             `json:"id"`
	Lat      *float64          `json:"lat,omitempty"`
	Lon      *float64          `json:"lon,omitempty"`
	Center   *Point            `json:"center,omitempty"`
	Geometry []Point           `json:"geometry,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type response struct {
	Elements []Element `json:"elements"`
}

// StationID is stable for a given kind and provider id.
func (e Element) StationID() string {
	return "osm-" + string(e.Type) + "-" + strconv.FormatInt(e.ID, 10)
}

// Coordinate resolves the element position: direct lat/lon first, then the
// provider's center, then the mean of the geometry points.
func (e Element) Coordinate() (geo.Coordinate, bool) {
	if e.Lat != nil && e.Lon != nil {
		return geo.Coordinate{Latitude: *e.Lat, Longitude: *e.Lon}, true
	}
	if e.Center != nil {
		return geo.Coordinate{Latitude: e.Center.Lat, Longitude: e.Center.Lon}, true
	}
	if len(e.Geometry) == 0 {
		return geo.Coordinate{}, false
	}

	var lat, lon float64
	for _, p := range e.Geometry {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(e.Geometry))
	return geo.Coordinate{Latitude: lat / n, Longitude: lon / n}, true
}
