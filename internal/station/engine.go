// Package station discovers fuel stations around a point and ranks them by
// simulated regular price.
package station

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/bbernstein/gotgas/backend-go/internal/models"
	"github.com/bbernstein/gotgas/backend-go/internal/overpass"
	"github.com/bbernstein/gotgas/backend-go/internal/pricing"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateIdle      State = "IDLE"
	StateQuerying  State = "QUERYING"
	StateFiltering State = "FILTERING"
	StateEnriching State = "ENRICHING"
	StateRanking   State = "RANKING"
	StateReady     State = "READY"
	StateFailed    State = "FAILED"
)

const (
	SourceUnavailableMessage = "OpenStreetMap is temporarily unavailable. Please try again in a moment."
	InvalidSearchMessage     = "Search location or radius is invalid."

	DefaultStagger     = 100 * time.Millisecond
	DefaultEnrichLimit = 8
)

var (
	ErrSourceUnavailable = errors.New("station source unavailable")
	ErrInvalidSearch     = errors.New("invalid search")
)

// StationSource supplies raw fuel-station candidates
type StationSource interface {
	FetchFuelStations(ctx context.Context, center geo.Coordinate, radiusMeters int) ([]overpass.Element, error)
}

// Reverser looks up a place name for a coordinate. An empty name means no match.
type Reverser interface {
	Reverse(ctx context.Context, coord geo.Coordinate) (string, error)
}

type Pricer interface {
	Quote() models.FuelQuote
}

// Result is the outcome of one Search invocation. Bounds is the degree box
// around the searched circle, for fitting a map view. Seq orders invocations on
// the same Engine; Stale is set when a newer invocation had already started
// by the time this one finished, in which case it was not committed.
type Result struct {
	Seq         uint64           `json:"-"`
	State       State            `json:"state"`
	Center      geo.Coordinate   `json:"center"`
	RadiusMiles float64          `json:"radiusMiles"`
	Bounds      geo.BoundingBox  `json:"bounds"`
	Stations    []models.Station `json:"stations"`
	Err         error            `json:"-"`
	Message     string           `json:"message,omitempty"`
	Stale       bool             `json:"-"`
}

type Engine struct {
	source      StationSource
	reverser    Reverser
	pricer      Pricer
	favorites   models.FavoriteIndex
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	stagger     time.Duration
	enrichLimit int

	seq     atomic.Uint64
	mu      sync.RWMutex
	state   State
	current Result
}

type Option func(*Engine)

// WithReverser enables address enrichment. Without one, stations keep their tag-built labels.
func WithReverser(r Reverser) Option {
	return func(e *Engine) {
		e.reverser = r
	}
}

func WithFavorites(f models.FavoriteIndex) Option {
	return func(e *Engine) {
		e.favorites = f
	}
}

func WithPricer(p Pricer) Option {
	return func(e *Engine) {
		e.pricer = p
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithStagger sets the delay added per pending reverse geocode, by position
func WithStagger(d time.Duration) Option {
	return func(e *Engine) {
		e.stagger = d
	}
}

func WithEnrichLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.enrichLimit = n
		}
	}
}

func NewEngine(source StationSource, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		pricer:      pricing.NewGenerator(),
		clock:       clockwork.NewRealClock(),
		stagger:     DefaultStagger,
		enrichLimit: DefaultEnrichLimit,
		state:       StateIdle,
		current:     Result{State: StateIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the phase of the most recently started search.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Current returns the last committed result.
func (e *Engine) Current() Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Search runs a full discovery pass. It never returns an error directly:
// failures end in a FAILED result carrying Err and a user-facing Message.
// radiusMiles is clamped to [geo.MinRadiusMiles, geo.MaxRadiusMiles].
func (e *Engine) Search(ctx context.Context, center geo.Coordinate, radiusMiles float64) Result {
	seq := e.seq.Add(1)
	start := e.clock.Now()

	result := Result{Seq: seq, Center: center}

	if err := center.Validate(); err != nil {
		return e.finish(start, e.fail(result, fmt.Errorf("%w: %w", ErrInvalidSearch, err), InvalidSearchMessage))
	}
	if math.IsNaN(radiusMiles) || math.IsInf(radiusMiles, 0) {
		return e.finish(start, e.fail(result, fmt.Errorf("%w: radius must be finite", ErrInvalidSearch), InvalidSearchMessage))
	}
	radiusMiles = geo.ClampRadius(radiusMiles)
	result.RadiusMiles = radiusMiles
	result.Bounds = geo.NewBoundingBox(center, radiusMiles)

	logger := log.With().
		Uint64("seq", seq).
		Float64("lat", center.Latitude).
		Float64("lon", center.Longitude).
		Float64("radius_miles", radiusMiles).
		Logger()

	e.setPhase(seq, StateQuerying)
	elements, err := e.source.FetchFuelStations(ctx, center, geo.MilesToMeters(radiusMiles))
	if err != nil {
		logger.Error().Err(err).Msg("Fetching fuel stations failed")
		return e.finish(start, e.fail(result, fmt.Errorf("%w: %w", ErrSourceUnavailable, err), SourceUnavailableMessage))
	}

	e.setPhase(seq, StateFiltering)
	stations := filter(elements, center, radiusMiles)
	logger.Debug().Int("candidates", len(elements)).Int("in_radius", len(stations)).Msg("Filtered candidates")

	e.setPhase(seq, StateEnriching)
	e.enrich(ctx, stations)

	e.setPhase(seq, StateRanking)
	e.rank(stations)
	e.markSaved(ctx, stations)

	result.State = StateReady
	result.Stations = stations
	return e.finish(start, result)
}

// filter normalizes elements and keeps those within radiusMiles by
// great-circle distance. The provider query is only an approximation.
func filter(elements []overpass.Element, center geo.Coordinate, radiusMiles float64) []models.Station {
	stations := make([]models.Station, 0, len(elements))
	for _, el := range elements {
		s, ok := normalize(el, center)
		if !ok {
			log.Trace().Str("type", string(el.Type)).Int64("id", el.ID).Msg("Skipping element without coordinate")
			continue
		}
		if s.DistanceMiles <= radiusMiles {
			stations = append(stations, s)
		}
	}
	return stations
}

// enrich reverse geocodes stations whose label lacks a structured address.
// Request i among the pending ones starts no earlier than i*stagger after the
// first. Failures leave the station's label as it was.
func (e *Engine) enrich(ctx context.Context, stations []models.Station) {
	if e.reverser == nil {
		return
	}

	var pending []int
	for i, s := range stations {
		if !hasStructuredAddress(s.Address) {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.enrichLimit)
	start := e.clock.Now()

	for n, idx := range pending {
		delay := time.Duration(n) * e.stagger
		g.Go(func() error {
			if wait := delay - e.clock.Since(start); wait > 0 {
				select {
				case <-gctx.Done():
					return nil
				case <-e.clock.After(wait):
				}
			}

			name, err := e.reverser.Reverse(gctx, stations[idx].Coordinate)
			if err != nil {
				log.Warn().Err(err).Str("station_id", stations[idx].ID).Msg("Reverse geocoding failed, keeping existing label")
				return nil
			}
			if name != "" {
				stations[idx].Address = name
			}
			return nil
		})
	}
	_ = g.Wait()
}

// rank prices every station and sorts ascending by regular price. Equal
// prices keep their prior order.
func (e *Engine) rank(stations []models.Station) {
	for i := range stations {
		stations[i].FuelPrices = e.pricer.Quote()
	}
	sort.SliceStable(stations, func(i, j int) bool {
		return stations[i].FuelPrices.Regular < stations[j].FuelPrices.Regular
	})
	for i := range stations {
		stations[i].IsCheapest = i == 0
	}
}

func (e *Engine) markSaved(ctx context.Context, stations []models.Station) {
	if e.favorites == nil {
		return
	}
	ids := e.favorites.IDs(ctx)
	for i := range stations {
		_, stations[i].Saved = ids[stations[i].ID]
	}
}

func (e *Engine) fail(result Result, err error, message string) Result {
	result.State = StateFailed
	result.Err = err
	result.Message = message
	return result
}

func (e *Engine) setPhase(seq uint64, state State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq == e.seq.Load() {
		e.state = state
	}
}

// finish commits result unless a newer search has started since.
func (e *Engine) finish(start time.Time, result Result) Result {
	e.mu.Lock()
	if result.Seq == e.seq.Load() {
		e.state = result.State
		e.current = result
	} else {
		result.Stale = true
	}
	e.mu.Unlock()

	if result.Stale {
		log.Debug().Uint64("seq", result.Seq).Msg("Discarding stale search result")
	}
	e.observe(start, result)
	return result
}

func (e *Engine) observe(start time.Time, result Result) {
	if e.metrics == nil {
		return
	}

	outcome := "ready"
	switch {
	case result.Stale:
		outcome = "stale"
	case result.State == StateFailed:
		outcome = "failed"
	}
	e.metrics.Searches.WithLabelValues(outcome).Inc()
	e.metrics.SearchDuration.Observe(e.clock.Since(start).Seconds())
	if result.State == StateReady {
		e.metrics.StationsReturned.Observe(float64(len(result.Stations)))
	}
}
