package station

import (
	"sort"
	"strings"
	"unicode"

	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/bbernstein/gotgas/backend-go/internal/models"
	"github.com/bbernstein/gotgas/backend-go/internal/overpass"
)

const defaultDisplayName = "Gas Station"

// normalize converts a raw element into a Station positioned relative to center.
// Elements with no derivable coordinate are rejected.
func normalize(el overpass.Element, center geo.Coordinate) (models.Station, bool) {
	coord, ok := el.Coordinate()
	if !ok || coord.Validate() != nil {
		return models.Station{}, false
	}

	tags := el.Tags
	if tags == nil {
		tags = map[string]string{}
	}

	return models.Station{
		ID:            el.StationID(),
		DisplayName:   displayName(tags),
		Address:       placeLabel(tags),
		Tags:          tags,
		Coordinate:    coord,
		DistanceMiles: geo.Distance(center, coord),
		Source:        models.SourceOSM,
		Brand:         tags["brand"],
		Operator:      tags["operator"],
		OpeningHours:  tags["opening_hours"],
		Phone:         firstNonEmpty(tags["phone"], tags["contact:phone"]),
		Website:       firstNonEmpty(tags["website"], tags["contact:website"]),
		FuelTypes:     fuelTypes(tags),
	}, true
}

func displayName(tags map[string]string) string {
	return firstNonEmpty(tags["name"], tags["brand"], defaultDisplayName)
}

// placeLabel joins "<housenumber> <street>", locality, state and postcode
// with ", ", skipping missing parts.
func placeLabel(tags map[string]string) string {
	var parts []string

	street := tags["addr:street"]
	if house := tags["addr:housenumber"]; house != "" && street != "" {
		parts = append(parts, house+" "+street)
	} else if street != "" {
		parts = append(parts, street)
	}

	if locality := firstNonEmpty(tags["addr:city"], tags["addr:town"], tags["addr:village"]); locality != "" {
		parts = append(parts, locality)
	}
	if state := tags["addr:state"]; state != "" {
		parts = append(parts, state)
	}
	if postcode := tags["addr:postcode"]; postcode != "" {
		parts = append(parts, postcode)
	}

	return strings.Join(parts, ", ")
}

// hasStructuredAddress reports whether the label has at least two parts
func hasStructuredAddress(label string) bool {
	return strings.Contains(label, ",")
}

// fuelTypes lists the fuel:* tags marked available, title-cased, ordered by tag key.
func fuelTypes(tags map[string]string) []string {
	var keys []string
	for key, val := range tags {
		if !strings.HasPrefix(key, "fuel:") {
			continue
		}
		switch strings.ToLower(val) {
		case "yes", "1", "true":
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var types []string
	for _, key := range keys {
		if name := titleCase(strings.TrimPrefix(key, "fuel:")); name != "" {
			types = append(types, name)
		}
	}
	return types
}

// titleCase splits on underscores, hyphens and whitespace and upper-cases the
// first letter of each word.
func titleCase(value string) string {
	words := strings.FieldsFunc(value, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
