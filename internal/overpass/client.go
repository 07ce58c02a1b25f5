package overpass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/bbernstein/gotgas/backend-go/pkg/http/client"
	"github.com/rs/zerolog/log"
)

const formContentType = "application/x-www-form-urlencoded; charset=UTF-8"

// TransportError reports an unreachable provider, a non-2xx status or a
// payload that is not JSON.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("overpass: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("overpass: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Client struct {
	httpClient client.Interface
	metrics    *metrics.Metrics
}

// NewClient posts queries through httpClient. The client's base URL should be
// the interpreter endpoint, e.g. DefaultURL.
func NewClient(httpClient client.Interface, m *metrics.Metrics) *Client {
	return &Client{
		httpClient: httpClient,
		metrics:    m,
	}
}

// FetchFuelStations returns the raw fuel elements within radiusMeters of center.
func (c *Client) FetchFuelStations(ctx context.Context, center geo.Coordinate, radiusMeters int) ([]Element, error) {
	query := BuildQuery(center, radiusMeters)
	form := url.Values{"data": {query}}.Encode()

	log.Debug().
		Float64("lat", center.Latitude).
		Float64("lon", center.Longitude).
		Int("radius_m", radiusMeters).
		Msg("Querying Overpass for fuel stations")

	resp, err := c.httpClient.Post(ctx, "", formContentType, []byte(form))
	if err != nil {
		c.observe("error")
		return nil, &TransportError{Message: "request failed", Err: err}
	}

	if !resp.OK() {
		c.observe("error")
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	if !isJSON(resp) {
		c.observe("error")
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected content type %q", resp.ContentType()),
		}
	}

	var decoded response
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		c.observe("error")
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: "decoding response", Err: err}
	}

	c.observe("success")
	log.Debug().Int("elements", len(decoded.Elements)).Msg("Overpass returned elements")
	return decoded.Elements, nil
}

// isJSON accepts a JSON content type, or any body that looks like a JSON object
// since some mirrors send text/plain.
func isJSON(resp *client.Response) bool {
	if strings.Contains(strings.ToLower(resp.ContentType()), "application/json") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(resp.Body), []byte("{"))
}

func (c *Client) observe(outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.ProviderRequests.WithLabelValues(outcome).Inc()
}
