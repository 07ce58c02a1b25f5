package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/bbernstein/gotgas/backend-go/internal/models"
)

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

func (r APIResponse) GetResponseType() string {
	return r.ResponseType
}

// Location is the place a text search resolved to
type Location struct {
	Query      string         `json:"query"`
	PlaceName  string         `json:"placeName"`
	Coordinate geo.Coordinate `json:"coordinate"`
}

type StationsResponse struct {
	APIResponse
	Center      geo.Coordinate   `json:"center"`
	RadiusMiles float64          `json:"radiusMiles"`
	Bounds      geo.BoundingBox  `json:"bounds"`
	Location    *Location        `json:"location,omitempty"`
	Stations    []models.Station `json:"stations"`
}

type FavoritesResponse struct {
	APIResponse
	Favorites []models.FavoriteStation `json:"favorites"`
}

// DisabledResponse is returned instead of an error when map features are off
type DisabledResponse struct {
	APIResponse
	Message string `json:"message"`
}

type ErrorResponse struct {
	APIResponse
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func NewStationsResponse(center geo.Coordinate, radiusMiles float64, bounds geo.BoundingBox, stations []models.Station, location *Location) *StationsResponse {
	if stations == nil {
		stations = []models.Station{}
	}
	return &StationsResponse{
		APIResponse: APIResponse{ResponseType: "stations"},
		Center:      center,
		RadiusMiles: radiusMiles,
		Bounds:      bounds,
		Location:    location,
		Stations:    stations,
	}
}

func NewFavoritesResponse(favorites []models.FavoriteStation) *FavoritesResponse {
	if favorites == nil {
		favorites = []models.FavoriteStation{}
	}
	return &FavoritesResponse{
		APIResponse: APIResponse{ResponseType: "favorites"},
		Favorites:   favorites,
	}
}

func NewDisabledResponse(message string) *DisabledResponse {
	return &DisabledResponse{
		APIResponse: APIResponse{ResponseType: "disabled"},
		Message:     message,
	}
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

func headers() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET,POST,PATCH,DELETE,OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
}

// Response helpers
func Success(body interface{}) (events.APIGatewayProxyResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Error("Internal Server Error", http.StatusInternalServerError)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers(),
		Body:       string(jsonBody),
	}, nil
}

func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	return ErrorWithCode(message, "", statusCode)
}

// ErrorWithCode adds a machine-readable code the client can branch on
func ErrorWithCode(message, code string, statusCode int) (events.APIGatewayProxyResponse, error) {
	resp := NewErrorResponse(message)
	resp.Code = code
	body, _ := json.Marshal(resp)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers(),
		Body:       string(body),
	}, nil
}

// Preflight answers CORS OPTIONS requests
func Preflight() (events.APIGatewayProxyResponse, error) {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusNoContent,
		Headers:    headers(),
	}, nil
}

// Parameter parsing helpers

// ParseCoordinates reads lat and lon (or lng). ok is false when both are
// absent; only one of the pair is an InvalidCoordinatesError.
func ParseCoordinates(params map[string]string) (coord geo.Coordinate, ok bool, err error) {
	latStr, hasLat := params["lat"]
	lonStr, hasLon := params["lon"]
	if !hasLon {
		lonStr, hasLon = params["lng"]
	}

	if !hasLat && !hasLon {
		return geo.Coordinate{}, false, nil
	}
	if hasLat != hasLon {
		return geo.Coordinate{}, false, InvalidCoordinatesError{}
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Coordinate{}, false, err
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geo.Coordinate{}, false, err
	}

	coord = geo.Coordinate{Latitude: lat, Longitude: lon}
	if coord.Validate() != nil {
		return geo.Coordinate{}, false, InvalidCoordinatesError{}
	}

	return coord, true, nil
}

// ParseRadius reads radius in miles, falling back to defaultMiles when absent.
// The value must be a positive finite number; range clamping is left to the search.
func ParseRadius(params map[string]string, defaultMiles float64) (float64, error) {
	radiusStr, ok := params["radius"]
	if !ok || strings.TrimSpace(radiusStr) == "" {
		return defaultMiles, nil
	}

	radius, err := strconv.ParseFloat(strings.TrimSpace(radiusStr), 64)
	if err != nil || math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return 0, InvalidRadiusError{Value: radiusStr}
	}
	return radius, nil
}

type InvalidCoordinatesError struct{}

func (e InvalidCoordinatesError) Error() string {
	return "Invalid coordinates"
}

type InvalidRadiusError struct {
	Value string
}

func (e InvalidRadiusError) Error() string {
	return "Invalid radius"
}
