package synthetic

import (
	"context"
	"hash/fnv"
	"math/rand/v2"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat/distuv"

	"index-returns/internal/period"
)

// Generator produces placeholder series when no recorded value exists for
// any requested index. Output series have exactly n points each.
type Generator interface {
	Generate(ctx context.Context, indices []string, p period.Period, n int) (map[string][]null.Float, error)
}

// TrendGenerator draws an upward linear trend per index plus uniform noise
// bounded by Amplitude. Series are deterministic for a given Seed, index
// and period.
type TrendGenerator struct {
	Seed      uint64
	Amplitude float64
}

// NewTrendGenerator returns a generator with the default noise amplitude.
func NewTrendGenerator(seed uint64) *TrendGenerator {
	return &TrendGenerator{Seed: seed, Amplitude: 1.5}
}

// Generate builds one series per index. It refuses to run once ctx is done.
func (g *TrendGenerator) Generate(ctx context.Context, indices []string, p period.Period, n int) (map[string][]null.Float, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string][]null.Float, len(indices))
	for _, index := range indices {
		src := g.source(index, p)
		base, slope := g.trend(src, p)
		noise := distuv.Uniform{Min: -g.Amplitude, Max: g.Amplitude, Src: src}

		series := make([]null.Float, n)
		for i := range n {
			v := base + slope*float64(i)
			if g.Amplitude > 0 {
				v += noise.Rand()
			}
			series[i] = null.FloatFrom(v)
		}
		out[index] = series
	}
	return out, nil
}

func (g *TrendGenerator) source(index string, p period.Period) rand.Source {
	h := fnv.New64a()
	h.Write([]byte(index))
	h.Write([]byte{byte(p.Years())})
	return rand.NewPCG(g.Seed, h.Sum64())
}

// trend picks a base annualized return in [4, 14) and a per-step drift in
// [0.01, 0.1). Longer horizons start lower and drift less.
func (g *TrendGenerator) trend(src rand.Source, p period.Period) (float64, float64) {
	r := rand.New(src)
	damp := 1 / (1 + 0.1*float64(p.Years()))
	base := (4 + 10*r.Float64()) * (0.8 + 0.2*damp)
	slope := (0.01 + 0.09*r.Float64()) * damp
	return base, slope
}

var _ Generator = (*TrendGenerator)(nil)
