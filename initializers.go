// SPDX-License-Identifier: CC-BY-NC-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Initializer produces starting values for a freshly allocated parameter.
// Implementations are pure policy objects: they can be serialized to a
// (name, args) pair and restored by InitializerFromConfig.
type Initializer interface {
	// Init fills t in place.
	Init(t *Tensor)
	Name() string
	Args() []float64
}

// uniformInit draws from U(lower, upper).
type uniformInit struct{ lower, upper float64 }

// Uniform returns an initializer drawing from a uniform distribution on
// [lower, upper).
func Uniform(lower, upper float64) Initializer {
	if lower > upper {
		lower, upper = upper, lower
	}
	return &uniformInit{lower, upper}
}

func (u *uniformInit) Init(t *Tensor) {
	data := t.DataPtr()
	for i := range data {
		data[i] = rand.Float64()*(u.upper-u.lower) + u.lower
	}
}

func (u *uniformInit) Name() string    { return "uniform" }
func (u *uniformInit) Args() []float64 { return []float64{u.lower, u.upper} }

// glorotUniform draws from U(-limit, limit) with limit = sqrt(6/(fan_in+fan_out)).
// For a 2-D kernel [in, out], fan_in and fan_out are the two dimensions;
// for other ranks the first and last dimensions are used.
type glorotUniform struct{}

// GlorotUniform returns the Glorot (Xavier) uniform initializer.
func GlorotUniform() Initializer { return glorotUniform{} }

func (glorotUniform) Init(t *Tensor) {
	dims := t.Shape().DimsRef()
	fanIn, fanOut := 1, 1
	if len(dims) > 0 {
		fanIn, fanOut = dims[0], dims[len(dims)-1]
	}
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	data := t.DataPtr()
	for i := range data {
		data[i] = rand.Float64()*2*limit - limit
	}
}

func (glorotUniform) Name() string    { return "glorot_uniform" }
func (glorotUniform) Args() []float64 { return nil }

// zerosInit leaves the (already zeroed) parameter untouched.
type zerosInit struct{}

// ZeroInit returns the all-zeros initializer, the default for bias vectors.
func ZeroInit() Initializer { return zerosInit{} }

func (zerosInit) Init(t *Tensor) {
	data := t.DataPtr()
	for i := range data {
		data[i] = 0
	}
}

func (zerosInit) Name() string    { return "zeros" }
func (zerosInit) Args() []float64 { return nil }

// constantInit fills with a single value.
type constantInit struct{ value float64 }

// Constant returns an initializer that fills the parameter with value.
func Constant(value float64) Initializer { return &constantInit{value} }

func (c *constantInit) Init(t *Tensor) {
	data := t.DataPtr()
	for i := range data {
		data[i] = c.value
	}
}

func (c *constantInit) Name() string    { return "constant" }
func (c *constantInit) Args() []float64 { return []float64{c.value} }

// InitializerFromConfig restores an initializer from its serialized
// (name, args) form.
func InitializerFromConfig(name string, args []float64) (Initializer, error) {
	switch name {
	case "uniform":
		if len(args) != 2 {
			return nil, errors.Errorf("uniform initializer expects 2 args, got %d", len(args))
		}
		return Uniform(args[0], args[1]), nil
	case "glorot_uniform":
		return GlorotUniform(), nil
	case "zeros":
		return ZeroInit(), nil
	case "constant":
		if len(args) != 1 {
			return nil, errors.Errorf("constant initializer expects 1 arg, got %d", len(args))
		}
		return Constant(args[0]), nil
	default:
		return nil, errors.Errorf("unknown initializer %q", name)
	}
}
