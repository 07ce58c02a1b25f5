// Package geocode resolves free-text locations and coordinates through the
// Mapbox Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/bbernstein/gotgas/backend-go/pkg/http/client"
	"github.com/rs/zerolog/log"
)

const DefaultURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

const forwardTypes = "address,postcode,place,locality,neighborhood"

// ErrNotFound is returned by Forward when no feature with a usable center matches.
var ErrNotFound = errors.New("location not found")

// APIError is a failed request or an unusable response from Mapbox
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mapbox API error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("mapbox API error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Place is the best match for a forward query
type Place struct {
	Coordinate geo.Coordinate `json:"coordinate"`
	PlaceName  string         `json:"placeName"`
	Relevance  float64        `json:"relevance"`
}

type Geocoder interface {
	Forward(ctx context.Context, query string) (Place, error)
	// Reverse returns the best-match place name, or "" when nothing matches.
	Reverse(ctx context.Context, coord geo.Coordinate) (string, error)
}

type Client struct {
	token      string
	httpClient client.Interface
	metrics    *metrics.Metrics
}

var _ Geocoder = (*Client)(nil)

// NewClient expects httpClient to have DefaultURL (or a test server) as its base URL.
func NewClient(token string, httpClient client.Interface, m *metrics.Metrics) *Client {
	return &Client{
		token:      token,
		httpClient: httpClient,
		metrics:    m,
	}
}

func (c *Client) Forward(ctx context.Context, query string) (Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Place{}, ErrNotFound
	}

	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"autocomplete": {"true"},
		"types":        {forwardTypes},
	}

	features, err := c.doRequest(ctx, "/"+url.PathEscape(query)+".json?"+params.Encode(), "forward")
	if err != nil {
		return Place{}, err
	}

	if len(features) == 0 || len(features[0].Center) < 2 {
		c.observe("forward", "empty")
		return Place{}, ErrNotFound
	}
	c.observe("forward", "success")

	f := features[0]
	placeName := f.PlaceName
	if placeName == "" {
		placeName = query
	}
	return Place{
		// Mapbox uses lon,lat order.
		Coordinate: geo.Coordinate{Latitude: f.Center[1], Longitude: f.Center[0]},
		PlaceName:  placeName,
		Relevance:  f.Relevance,
	}, nil
}

func (c *Client) Reverse(ctx context.Context, coord geo.Coordinate) (string, error) {
	path := fmt.Sprintf("/%.6f,%.6f.json", coord.Longitude, coord.Latitude)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	features, err := c.doRequest(ctx, path+"?"+params.Encode(), "reverse")
	if err != nil {
		return "", err
	}

	if len(features) == 0 || features[0].PlaceName == "" {
		c.observe("reverse", "empty")
		return "", nil
	}
	c.observe("reverse", "success")
	return features[0].PlaceName, nil
}

func (c *Client) doRequest(ctx context.Context, path, method string) ([]feature, error) {
	resp, err := c.httpClient.Get(ctx, path)
	if err != nil {
		c.observe(method, "error")
		return nil, &APIError{Message: method + " geocode request", Err: err}
	}

	if !resp.OK() {
		c.observe(method, "error")
		log.Debug().Int("status", resp.StatusCode).Str("method", method).Msg("Mapbox returned non-2xx status")
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(resp.Body, 200)),
		}
	}

	var mapboxResp response
	if err := json.Unmarshal(resp.Body, &mapboxResp); err != nil {
		c.observe(method, "error")
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "decoding response", Err: err}
	}
	return mapboxResp.Features, nil
}

func (c *Client) observe(method, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
