// SPDX-License-Identifier: CC-BY-NC-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"math"

	"github.com/pkg/errors"
)

// Constraint projects a parameter tensor back into an allowed region. The
// host optimizer applies it after each update step; this package only stores
// the handle alongside the parameter it governs.
type Constraint interface {
	Apply(t *Tensor)
	Name() string
	Args() []float64
}

// nonNeg clamps negative entries to zero.
type nonNeg struct{}

// NonNeg returns the non-negativity constraint.
func NonNeg() Constraint { return nonNeg{} }

func (nonNeg) Apply(t *Tensor) {
	data := t.DataPtr()
	for i, w := range data {
		if w < 0 {
			data[i] = 0
		}
	}
}

func (nonNeg) Name() string    { return "non_neg" }
func (nonNeg) Args() []float64 { return nil }

// forEachColumn visits each column of a 2-D tensor (stride = row width),
// or the whole vector for rank 1. Shared by the norm-based constraints.
func forEachColumn(t *Tensor, visit func(get func(i int) float64, set func(i int, v float64), n int)) {
	dims := t.Shape().DimsRef()
	data := t.DataPtr()
	if len(dims) < 2 {
		visit(func(i int) float64 { return data[i] },
			func(i int, v float64) { data[i] = v }, len(data))
		return
	}
	rows, cols := dims[0], prod(dims[1:])
	for c := 0; c < cols; c++ {
		c := c
		visit(func(i int) float64 { return data[i*cols+c] },
			func(i int, v float64) { data[i*cols+c] = v }, rows)
	}
}

// maxNorm rescales any column whose L2 norm exceeds max.
type maxNorm struct{ max float64 }

// MaxNorm returns the constraint capping per-column L2 norms at max.
// Columns run along the first axis, so for a kernel [in, units] each output
// unit's incoming weight vector is capped independently.
func MaxNorm(max float64) Constraint { return &maxNorm{max} }

func (m *maxNorm) Apply(t *Tensor) {
	forEachColumn(t, func(get func(int) float64, set func(int, float64), n int) {
		sumSq := 0.0
		for i := 0; i < n; i++ {
			w := get(i)
			sumSq += w * w
		}
		norm := math.Sqrt(sumSq)
		if norm > m.max && norm > 0 {
			scale := m.max / norm
			for i := 0; i < n; i++ {
				set(i, get(i)*scale)
			}
		}
	})
}

func (m *maxNorm) Name() string    { return "max_norm" }
func (m *maxNorm) Args() []float64 { return []float64{m.max} }

// unitNorm rescales each column to unit L2 norm.
type unitNorm struct{}

// UnitNorm returns the constraint projecting each column onto the unit sphere.
func UnitNorm() Constraint { return unitNorm{} }

func (unitNorm) Apply(t *Tensor) {
	forEachColumn(t, func(get func(int) float64, set func(int, float64), n int) {
		sumSq := 0.0
		for i := 0; i < n; i++ {
			w := get(i)
			sumSq += w * w
		}
		norm := math.Sqrt(sumSq)
		if norm > 0 {
			for i := 0; i < n; i++ {
				set(i, get(i)/norm)
			}
		}
	})
}

func (unitNorm) Name() string    { return "unit_norm" }
func (unitNorm) Args() []float64 { return nil }

// ConstraintFromConfig restores a constraint from its serialized
// (name, args) form.
func ConstraintFromConfig(name string, args []float64) (Constraint, error) {
	switch name {
	case "non_neg":
		return NonNeg(), nil
	case "max_norm":
		if len(args) != 1 {
			return nil, errors.Errorf("max_norm constraint expects 1 arg, got %d", len(args))
		}
		return MaxNorm(args[0]), nil
	case "unit_norm":
		return UnitNorm(), nil
	default:
		return nil, errors.Errorf("unknown constraint %q", name)
	}
}
