// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

// Layer is the contract both layer types implement for the host framework.
//
// Lifecycle: a layer starts unbuilt. Build allocates parameters from the
// first observed input shape and freezes them; a second Build with the same
// shape is a no-op, with a different shape it is a ConfigError. Forward on
// an unbuilt layer builds lazily from the input's shape.
type Layer interface {
	// Name identifies the layer instance; parameter names are prefixed with it.
	Name() string
	// Build allocates the trainable parameters for the given input shape.
	Build(inputShape Shape) error
	// Forward computes the layer's output for one batch.
	Forward(input *Tensor) (*Tensor, error)
	// OutputShape derives the output shape without running the transform.
	OutputShape(inputShape Shape) (Shape, error)
	// Params returns the trainable parameters, empty before Build.
	Params() []*Param
	// Config reflects the constructor arguments for persistence.
	Config() LayerConfig
}

// Param is a named trainable parameter handle. The host optimizer owns the
// values after Build: it mutates them in place, consults Regularizer for the
// penalty term, and applies Constraint after each update. Either policy may
// be nil.
type Param struct {
	Name        string
	Value       *Tensor
	Regularizer Regularizer
	Constraint  Constraint
}

// newParam allocates and initializes a parameter. This is the package's
// parameter-allocation seam: shape and policies in, trainable handle out.
func newParam(name string, shape Shape, init Initializer, reg Regularizer, cons Constraint) *Param {
	value := New(shape)
	init.Init(value)
	return &Param{Name: name, Value: value, Regularizer: reg, Constraint: cons}
}

// RegularizationPenalty sums the penalties of all regularized parameters of
// a layer. The host training loop adds this to its objective.
func RegularizationPenalty(l Layer) float64 {
	total := 0.0
	for _, p := range l.Params() {
		if p.Regularizer != nil {
			total += p.Regularizer.Penalty(p.Value)
		}
	}
	return total
}
