package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/gotgas/backend-go/internal/api"
	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/bbernstein/gotgas/backend-go/internal/geocode"
	"github.com/bbernstein/gotgas/backend-go/internal/station"
	"github.com/rs/zerolog/log"
)

const (
	MapsDisabledMessage = "Map features are disabled: no Mapbox access token is configured."

	emptyQueryMessage   = "Enter an address, city, or zip code."
	notFoundMessage     = "Location not found. Try a more specific query."
	searchFailedMessage = "Search failed. Please try again."
)

// Searcher runs one station discovery pass
type Searcher interface {
	Search(ctx context.Context, center geo.Coordinate, radiusMiles float64) station.Result
}

type StationsOptions struct {
	DefaultCenter      geo.Coordinate
	DefaultRadiusMiles float64
	MapsEnabled        bool
}

type StationsHandler struct {
	searcher Searcher
	geocoder geocode.Geocoder
	opts     StationsOptions
}

// NewStationsHandler serves station searches. geocoder may be nil when maps are disabled.
func NewStationsHandler(searcher Searcher, geocoder geocode.Geocoder, opts StationsOptions) *StationsHandler {
	return &StationsHandler{
		searcher: searcher,
		geocoder: geocoder,
		opts:     opts,
	}
}

func (h *StationsHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == http.MethodOptions {
		return api.Preflight()
	}
	if !h.opts.MapsEnabled {
		return api.Success(api.NewDisabledResponse(MapsDisabledMessage))
	}

	params := request.QueryStringParameters
	if params == nil {
		params = map[string]string{}
	}

	radius, err := api.ParseRadius(params, h.opts.DefaultRadiusMiles)
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	// A text query wins over coordinates
	var location *api.Location
	center := h.opts.DefaultCenter
	if query, ok := params["q"]; ok {
		location, err = h.locate(ctx, query)
		if err != nil {
			return h.locateError(err)
		}
		center = location.Coordinate
	} else {
		coord, found, err := api.ParseCoordinates(params)
		if err != nil {
			var invalidCoordErr api.InvalidCoordinatesError
			if errors.As(err, &invalidCoordErr) {
				return api.Error(err.Error(), http.StatusBadRequest)
			}
			return api.Error("Invalid parameters", http.StatusBadRequest)
		}
		if found {
			center = coord
		}
	}

	result := h.searcher.Search(ctx, center, radius)
	if result.State == station.StateFailed {
		if errors.Is(result.Err, station.ErrInvalidSearch) {
			return api.Error(result.Message, http.StatusBadRequest)
		}
		return api.Error(result.Message, http.StatusServiceUnavailable)
	}

	return api.Success(api.NewStationsResponse(result.Center, result.RadiusMiles, result.Bounds, result.Stations, location))
}

var errEmptyQuery = errors.New("empty location query")

func (h *StationsHandler) locate(ctx context.Context, query string) (*api.Location, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, errEmptyQuery
	}

	place, err := h.geocoder.Forward(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	return &api.Location{
		Query:      trimmed,
		PlaceName:  place.PlaceName,
		Coordinate: place.Coordinate,
	}, nil
}

func (h *StationsHandler) locateError(err error) (events.APIGatewayProxyResponse, error) {
	switch {
	case errors.Is(err, errEmptyQuery):
		return api.Error(emptyQueryMessage, http.StatusBadRequest)
	case errors.Is(err, geocode.ErrNotFound):
		return api.Error(notFoundMessage, http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("Location search failed")
		return api.Error(searchFailedMessage, http.StatusBadGateway)
	}
}
