package models

import "github.com/bbernstein/gotgas/backend-go/internal/geo"

type Source string

const (
	SourceOSM Source = "OSM"
)

// FuelQuote is a simulated price set for one station, in dollars per gallon
type FuelQuote struct {
	Regular  float64 `json:"regular"`
	MidGrade float64 `json:"midGrade"`
	Premium  float64 `json:"premium"`
	Diesel   float64 `json:"diesel"`
}

// Station is the normalized, ranked result of a discovery pass. ID is stable
// across searches ("osm-<kind>-<providerId>") and is the favorites key.
type Station struct {
	ID            string            `json:"id"`
	DisplayName   string            `json:"displayName"`
	Address       string            `json:"address,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
	Coordinate    geo.Coordinate    `json:"coordinate"`
	FuelPrices    FuelQuote         `json:"fuelPrices"`
	IsCheapest    bool              `json:"isCheapest"`
	DistanceMiles float64           `json:"distanceMiles"`
	Saved         bool              `json:"saved"`
	Source        Source            `json:"source"`

	Brand        string   `json:"brand,omitempty"`
	Operator     string   `json:"operator,omitempty"`
	OpeningHours string   `json:"openingHours,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Website      string   `json:"website,omitempty"`
	FuelTypes    []string `json:"fuelTypes,omitempty"`
}
