package overpass

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/bbernstein/gotgas/backend-go/pkg/http/client"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(geo.Coordinate{Latitude: 35.2271, Longitude: -80.8431}, 8047)

	assert.Equal(t,
		`[out:json][timeout:25];(node["amenity"="fuel"](around:8047,35.2271,-80.8431);`+
			`way["amenity"="fuel"](around:8047,35.2271,-80.8431);`+
			`relation["amenity"="fuel"](around:8047,35.2271,-80.8431););out center;`,
		q)
}

func TestElement_StationID(t *testing.T) {
	assert.Equal(t, "osm-node-42", Element{Type: KindNode, ID: 42}.StationID())
	assert.Equal(t, "osm-way-7", Element{Type: KindWay, ID: 7}.StationID())
	assert.Equal(t, "osm-relation-9001", Element{Type: KindRelation, ID: 9001}.StationID())
}

func TestElement_Coordinate(t *testing.T) {
	tests := []struct {
		name    string
		element Element
		want    geo.Coordinate
		wantOK  bool
	}{
		{
			name:    "node lat lon",
			element: Element{Type: KindNode, Lat: floatPtr(35.1), Lon: floatPtr(-80.9)},
			want:    geo.Coordinate{Latitude: 35.1, Longitude: -80.9},
			wantOK:  true,
		},
		{
			name:    "way center",
			element: Element{Type: KindWay, Center: &Point{Lat: 35.2, Lon: -80.8}},
			want:    geo.Coordinate{Latitude: 35.2, Longitude: -80.8},
			wantOK:  true,
		},
		{
			name: "geometry centroid",
			element: Element{Type: KindWay, Geometry: []Point{
				{Lat: 35.0, Lon: -81.0},
				{Lat: 35.2, Lon: -81.0},
				{Lat: 35.2, Lon: -80.8},
				{Lat: 35.0, Lon: -80.8},
			}},
			want:   geo.Coordinate{Latitude: 35.1, Longitude: -80.9},
			wantOK: true,
		},
		{
			name:    "lat without lon falls through to center",
			element: Element{Type: KindNode, Lat: floatPtr(1), Center: &Point{Lat: 2, Lon: 3}},
			want:    geo.Coordinate{Latitude: 2, Longitude: 3},
			wantOK:  true,
		},
		{
			name:    "no coordinate",
			element: Element{Type: KindRelation},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.element.Coordinate()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want.Latitude, got.Latitude, 1e-9)
				assert.InDelta(t, tt.want.Longitude, got.Longitude, 1e-9)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.NewMetricsForTesting()
	httpClient := client.New(client.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	return NewClient(httpClient, m), m
}

func TestFetchFuelStations(t *testing.T) {
	center := geo.Coordinate{Latitude: 35.2271, Longitude: -80.8431}

	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		assert.Equal(t, BuildQuery(center, 8047), form.Get("data"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"elements":[
			{"type":"node","id":1,"lat":35.23,"lon":-80.84,"tags":{"amenity":"fuel","name":"Shell"}},
			{"type":"way","id":2,"center":{"lat":35.24,"lon":-80.85},"tags":{"brand":"BP"}}
		]}`))
	})

	elements, err := c.FetchFuelStations(context.Background(), center, 8047)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "osm-node-1", elements[0].StationID())
	assert.Equal(t, "Shell", elements[0].Tags["name"])
	assert.Equal(t, KindWay, elements[1].Type)
	require.NotNil(t, elements[1].Center)
	assert.Equal(t, 35.24, elements[1].Center.Lat)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("success")))
}

func TestFetchFuelStations_JSONWithoutContentType(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`  {"elements":[]}`))
	})

	elements, err := c.FetchFuelStations(context.Background(), geo.Coordinate{}, 1609)
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestFetchFuelStations_TransportFailures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantStatus  int
		wantWrapped bool
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusGatewayTimeout)
			},
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name: "html body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html>rate limited</html>"))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"elements":[`))
			},
			wantStatus:  http.StatusOK,
			wantWrapped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := newTestClient(t, tt.handler)

			elements, err := c.FetchFuelStations(context.Background(), geo.Coordinate{}, 1609)
			require.Error(t, err)
			assert.Nil(t, elements)

			var transportErr *TransportError
			require.True(t, errors.As(err, &transportErr))
			assert.Equal(t, tt.wantStatus, transportErr.StatusCode)
			assert.Equal(t, tt.wantWrapped, transportErr.Unwrap() != nil)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("error")))
		})
	}
}

func TestFetchFuelStations_Unreachable(t *testing.T) {
	httpClient := &client.Client{
		PostFunc: func(ctx context.Context, path, contentType string, body []byte) (*client.Response, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	c := NewClient(httpClient, nil)

	_, err := c.FetchFuelStations(context.Background(), geo.Coordinate{}, 1609)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, 0, transportErr.StatusCode)
	assert.Contains(t, err.Error(), "connection refused")
}
