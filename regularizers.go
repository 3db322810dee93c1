// SPDX-License-Identifier: CC-BY-NC-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"math"

	"github.com/pkg/errors"
)

// Regularizer computes a scalar penalty from a parameter tensor. The host
// training loop adds the penalty to its objective; this package never
// differentiates it.
type Regularizer interface {
	Penalty(t *Tensor) float64
	Name() string
	Args() []float64
}

// l1Reg penalizes sum(|w|) * lambda.
type l1Reg struct{ lambda float64 }

// L1 returns the lasso regularizer with strength lambda.
func L1(lambda float64) Regularizer { return &l1Reg{lambda} }

func (r *l1Reg) Penalty(t *Tensor) float64 {
	sum := 0.0
	for _, w := range t.DataPtr() {
		sum += math.Abs(w)
	}
	return r.lambda * sum
}

func (r *l1Reg) Name() string    { return "l1" }
func (r *l1Reg) Args() []float64 { return []float64{r.lambda} }

// l2Reg penalizes sum(w^2) * lambda.
type l2Reg struct{ lambda float64 }

// L2 returns the ridge regularizer with strength lambda.
func L2(lambda float64) Regularizer { return &l2Reg{lambda} }

func (r *l2Reg) Penalty(t *Tensor) float64 {
	sum := 0.0
	for _, w := range t.DataPtr() {
		sum += w * w
	}
	return r.lambda * sum
}

func (r *l2Reg) Name() string    { return "l2" }
func (r *l2Reg) Args() []float64 { return []float64{r.lambda} }

// l1l2Reg combines both penalties.
type l1l2Reg struct{ lambda1, lambda2 float64 }

// L1L2 returns the elastic-net regularizer.
func L1L2(lambda1, lambda2 float64) Regularizer { return &l1l2Reg{lambda1, lambda2} }

func (r *l1l2Reg) Penalty(t *Tensor) float64 {
	sum1, sum2 := 0.0, 0.0
	for _, w := range t.DataPtr() {
		sum1 += math.Abs(w)
		sum2 += w * w
	}
	return r.lambda1*sum1 + r.lambda2*sum2
}

func (r *l1l2Reg) Name() string    { return "l1l2" }
func (r *l1l2Reg) Args() []float64 { return []float64{r.lambda1, r.lambda2} }

// smoothnessReg penalizes squared differences between adjacent entries along
// the last axis. For positional weights [output_dim, length], this discourages
// sharp jumps between neighboring positions. Constant rows incur no penalty.
type smoothnessReg struct{ lambda float64 }

// Smoothness returns the adjacent-difference regularizer used on positional
// weight matrices.
func Smoothness(lambda float64) Regularizer { return &smoothnessReg{lambda} }

func (r *smoothnessReg) Penalty(t *Tensor) float64 {
	dims := t.Shape().DimsRef()
	if len(dims) == 0 {
		return 0
	}
	last := dims[len(dims)-1]
	data := t.DataPtr()
	rows := len(data) / last

	sum := 0.0
	for v := 0; v < rows; v++ {
		row := data[v*last : (v+1)*last]
		for i := 1; i < last; i++ {
			d := row[i] - row[i-1]
			sum += d * d
		}
	}
	return r.lambda * sum
}

func (r *smoothnessReg) Name() string    { return "smoothness" }
func (r *smoothnessReg) Args() []float64 { return []float64{r.lambda} }

// RegularizerFromConfig restores a regularizer from its serialized
// (name, args) form.
func RegularizerFromConfig(name string, args []float64) (Regularizer, error) {
	switch name {
	case "l1":
		if len(args) != 1 {
			return nil, errors.Errorf("l1 regularizer expects 1 arg, got %d", len(args))
		}
		return L1(args[0]), nil
	case "l2":
		if len(args) != 1 {
			return nil, errors.Errorf("l2 regularizer expects 1 arg, got %d", len(args))
		}
		return L2(args[0]), nil
	case "l1l2":
		if len(args) != 2 {
			return nil, errors.Errorf("l1l2 regularizer expects 2 args, got %d", len(args))
		}
		return L1L2(args[0], args[1]), nil
	case "smoothness":
		if len(args) != 1 {
			return nil, errors.Errorf("smoothness regularizer expects 1 arg, got %d", len(args))
		}
		return Smoothness(args[0]), nil
	default:
		return nil, errors.Errorf("unknown regularizer %q", name)
	}
}
