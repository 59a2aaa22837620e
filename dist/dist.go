// Package dist provides continuous distributions drawn through an injected
// random stream. Sampling is by inverse CDF over gonum's distuv
// distributions, so a draw consumes exactly one uniform from the stream.
package dist

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"epi-model/random"

	"gonum.org/v1/gonum/stat/distuv"
)

// Continuous is a continuous distribution that can be drawn from
type Continuous interface {
	Draw() float64
}

var (
	ErrUnknownDistribution = errors.New("unknown distribution")
	ErrBadParameters       = errors.New("invalid distribution parameters")
)

type quantiler interface {
	Quantile(p float64) float64
}

// Quantile draws from any distuv distribution by its inverse CDF
type Quantile struct {
	Name string
	q    quantiler
	src  random.GlobalRandom
}

// Draw returns one sample; the uniform is kept inside (0, 1) so unbounded
// tails never yield infinities
func (d *Quantile) Draw() float64 {
	u := d.src.Float64()
	for u == 0 {
		u = d.src.Float64()
	}
	return d.q.Quantile(u)
}

// Constant always returns its value
type Constant float64

func (c Constant) Draw() float64 {
	return float64(c)
}

func finite(params []float64) bool {
	for _, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return true
}

func expect(kind string, params []float64, n int) error {
	if len(params) != n {
		return fmt.Errorf("%w: %s expects %d parameters, got %d", ErrBadParameters, kind, n, len(params))
	}
	if !finite(params) {
		return fmt.Errorf("%w: %s parameters must be finite", ErrBadParameters, kind)
	}
	return nil
}

// New creates a distribution by name.
//
//	constant    [value]
//	uniform     [min, max]
//	normal      [mu, sigma]
//	lognormal   [mu, sigma]
//	exponential [rate]
//	gamma       [alpha, beta]
//	triangle    [min, max, mode]
//	weibull     [k, lambda]
func New(kind string, params []float64, src random.GlobalRandom) (Continuous, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))

	var q quantiler
	switch kind {
	case "constant", "fixed":
		if err := expect(kind, params, 1); err != nil {
			return nil, err
		}
		return Constant(params[0]), nil

	case "uniform":
		if err := expect(kind, params, 2); err != nil {
			return nil, err
		}
		if params[0] > params[1] {
			return nil, fmt.Errorf("%w: uniform min > max", ErrBadParameters)
		}
		q = distuv.Uniform{Min: params[0], Max: params[1]}

	case "normal":
		if err := expect(kind, params, 2); err != nil {
			return nil, err
		}
		if params[1] <= 0 {
			return nil, fmt.Errorf("%w: normal sigma must be > 0", ErrBadParameters)
		}
		q = distuv.Normal{Mu: params[0], Sigma: params[1]}

	case "lognormal":
		if err := expect(kind, params, 2); err != nil {
			return nil, err
		}
		if params[1] <= 0 {
			return nil, fmt.Errorf("%w: lognormal sigma must be > 0", ErrBadParameters)
		}
		q = distuv.LogNormal{Mu: params[0], Sigma: params[1]}

	case "exponential":
		if err := expect(kind, params, 1); err != nil {
			return nil, err
		}
		if params[0] <= 0 {
			return nil, fmt.Errorf("%w: exponential rate must be > 0", ErrBadParameters)
		}
		q = distuv.Exponential{Rate: params[0]}

	case "gamma":
		if err := expect(kind, params, 2); err != nil {
			return nil, err
		}
		if params[0] <= 0 || params[1] <= 0 {
			return nil, fmt.Errorf("%w: gamma alpha and beta must be > 0", ErrBadParameters)
		}
		q = distuv.Gamma{Alpha: params[0], Beta: params[1]}

	case "triangle":
		if err := expect(kind, params, 3); err != nil {
			return nil, err
		}
		a, b, c := params[0], params[1], params[2]
		if !(a < b) || c < a || c > b {
			return nil, fmt.Errorf("%w: triangle needs min < max and min <= mode <= max", ErrBadParameters)
		}
		q = distuv.NewTriangle(a, b, c, nil)

	case "weibull":
		if err := expect(kind, params, 2); err != nil {
			return nil, err
		}
		if params[0] <= 0 || params[1] <= 0 {
			return nil, fmt.Errorf("%w: weibull k and lambda must be > 0", ErrBadParameters)
		}
		q = distuv.Weibull{K: params[0], Lambda: params[1]}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistribution, kind)
	}

	return &Quantile{Name: kind, q: q, src: src}, nil
}
