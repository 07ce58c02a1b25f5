// Package pricing simulates fuel prices. Quotes are synthetic and internally
// consistent; no live price feed is consulted.
package pricing

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bbernstein/gotgas/backend-go/internal/models"
)

const (
	MinPrice = 2.00
	MaxPrice = 3.50

	maxRegular = 3.05
)

// Generator produces FuelQuotes. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded from the current time
func NewGenerator() *Generator {
	seed := uint64(time.Now().UnixNano())
	return NewSeededGenerator(seed, seed>>1|1)
}

// NewSeededGenerator returns a deterministic Generator
func NewSeededGenerator(seed1, seed2 uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Quote generates one quote: regular first, midGrade and premium chained
// above it, diesel anchored near regular.
func (g *Generator) Quote() models.FuelQuote {
	g.mu.Lock()
	defer g.mu.Unlock()

	regular := g.between(MinPrice, maxRegular)
	midGrade := g.between(math.Min(MaxPrice, regular+0.12), math.Min(MaxPrice, regular+0.42))
	premium := g.between(math.Min(MaxPrice, midGrade+0.12), math.Min(MaxPrice, midGrade+0.45))
	diesel := g.between(
		math.Min(MaxPrice, regular+0.05),
		math.Min(MaxPrice, math.Max(midGrade+0.10, regular+0.65)),
	)

	return models.FuelQuote{
		Regular:  regular,
		MidGrade: midGrade,
		Premium:  premium,
		Diesel:   diesel,
	}
}

// between returns a rounded value in [floor, ceiling], or the floor when the
// range is empty
func (g *Generator) between(floor, ceiling float64) float64 {
	if floor >= ceiling {
		return Round(floor)
	}
	return Round(floor + g.rng.Float64()*(ceiling-floor))
}

// Round rounds to whole cents
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
