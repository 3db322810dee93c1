// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"math"

	"github.com/pkg/errors"
)

// Activation is an element-wise (or, for softmax, last-axis) transform
// applied to a layer's raw output. Resolved by name so configurations
// serialize to plain strings.
type Activation func(t *Tensor) *Tensor

// activationLinear is the identity.
func activationLinear(t *Tensor) *Tensor { return t }

func activationReLU(t *Tensor) *Tensor {
	r := New(t.Shape())
	src, dst := t.DataPtr(), r.DataPtr()
	for i, x := range src {
		if x > 0 {
			dst[i] = x
		}
	}
	return r
}

func activationSigmoid(t *Tensor) *Tensor {
	r := New(t.Shape())
	src, dst := t.DataPtr(), r.DataPtr()
	for i, x := range src {
		dst[i] = 1.0 / (1.0 + math.Exp(-x))
	}
	return r
}

func activationTanh(t *Tensor) *Tensor {
	r := New(t.Shape())
	src, dst := t.DataPtr(), r.DataPtr()
	for i, x := range src {
		dst[i] = math.Tanh(x)
	}
	return r
}

// activationSoftmax computes row-wise softmax along the last dimension.
// The max-subtraction prevents overflow in the exponential.
func activationSoftmax(t *Tensor) *Tensor {
	r := New(t.Shape())
	lastDim := t.Shape().At(-1)
	numVectors := t.Shape().Numel() / lastDim
	src, dst := t.DataPtr(), r.DataPtr()
	for v := 0; v < numVectors; v++ {
		off := v * lastDim
		sRow := src[off : off+lastDim]
		dRow := dst[off : off+lastDim]

		maxVal := sRow[0]
		for i := 1; i < lastDim; i++ {
			if sRow[i] > maxVal {
				maxVal = sRow[i]
			}
		}
		sum := 0.0
		for i := 0; i < lastDim; i++ {
			e := math.Exp(sRow[i] - maxVal)
			dRow[i] = e
			sum += e
		}
		invSum := 1.0 / sum
		for i := 0; i < lastDim; i++ {
			dRow[i] *= invSum
		}
	}
	return r
}

var activations = map[string]Activation{
	"linear":  activationLinear,
	"relu":    activationReLU,
	"sigmoid": activationSigmoid,
	"tanh":    activationTanh,
	"softmax": activationSoftmax,
}

// ActivationByName resolves an activation function. The empty string means
// linear (no activation), the constructor default.
func ActivationByName(name string) (Activation, error) {
	if name == "" {
		name = "linear"
	}
	fn, ok := activations[name]
	if !ok {
		return nil, errors.Errorf("unknown activation %q", name)
	}
	return fn, nil
}
