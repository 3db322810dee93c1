// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import "math"

// SeparableFC maps a 3-D input [batch, steps, channels] to a 2-D output
// [batch, output_dim] through a factored dense transform: one positional
// weight vector over steps and one channel weight vector over channels per
// output unit, combined by outer product. Parameter cost is
// (steps + channels) * output_dim instead of steps * channels * output_dim.
//
// With Symmetric(true) the positional weights are constrained to mirror
// around their center: only ceil(steps/2) columns are stored and the full
// vector is reconstructed at forward time.
type SeparableFC struct {
	name           string
	outputDim      int
	symmetric      bool
	smoothnessReg  Regularizer
	positionalCons Constraint

	built          bool
	builtShape     Shape
	originalLength int
	width          int // stored positional width: steps, or ceil(steps/2) when symmetric
	oddLength      bool
	numChannels    int

	wPos, wChan *Param
}

// NewSeparableFC creates an unbuilt separable fully-connected layer with
// outputDim output units. Optional behavior is set with the chained setters
// before the first Build or Forward call.
func NewSeparableFC(outputDim int) *SeparableFC {
	return &SeparableFC{name: "separable_fc", outputDim: outputDim}
}

// WithName sets the instance name used as the parameter-name prefix.
func (s *SeparableFC) WithName(name string) *SeparableFC {
	s.name = name
	return s
}

// Symmetric constrains the positional weights to be mirror-symmetric along
// the steps axis.
func (s *SeparableFC) Symmetric(symmetric bool) *SeparableFC {
	s.symmetric = symmetric
	return s
}

// SmoothnessRegularizer sets the penalty applied to the positional weight
// matrix (typically Smoothness, discouraging jumps between adjacent steps).
func (s *SeparableFC) SmoothnessRegularizer(r Regularizer) *SeparableFC {
	s.smoothnessReg = r
	return s
}

// PositionalConstraint sets the projection applied to the positional weight
// matrix after each optimizer update.
func (s *SeparableFC) PositionalConstraint(c Constraint) *SeparableFC {
	s.positionalCons = c
	return s
}

// Name returns the instance name.
func (s *SeparableFC) Name() string { return s.name }

// Build allocates W_pos [output_dim, width] and W_chan [output_dim, channels]
// from the first observed input shape [batch, steps, channels].
//
// Both are initialized uniformly in [-limit, limit] with
//
//	limit = (2 / (width*channels + output_dim))^(1/4)
//
// a fourth-root variant of Glorot scaling: the full weight is a product of
// the two factors, so each factor takes the square root of the usual limit.
func (s *SeparableFC) Build(inputShape Shape) error {
	if s.built {
		if inputShape.Equal(s.builtShape) {
			return nil
		}
		return configErrorf(s.name, "already built for input shape %v, cannot rebuild for %v",
			s.builtShape, inputShape)
	}

	s.originalLength = inputShape.At(1)
	s.numChannels = inputShape.At(2)
	if s.symmetric {
		s.oddLength = s.originalLength%2 == 1
		s.width = (s.originalLength + 1) / 2
	} else {
		s.width = s.originalLength
	}

	limit := math.Sqrt(math.Sqrt(2.0 / float64(s.width*s.numChannels+s.outputDim)))
	s.wPos = newParam(s.name+"_W_pos", NewShape(s.outputDim, s.width),
		Uniform(-limit, limit), s.smoothnessReg, s.positionalCons)
	s.wChan = newParam(s.name+"_W_chan", NewShape(s.outputDim, s.numChannels),
		Uniform(-limit, limit), nil, nil)

	s.builtShape = inputShape
	s.built = true
	return nil
}

// mirrorTail returns w's columns reversed along the width axis. When
// dropCenter is true the leading reversed column is dropped: for odd input
// lengths the stored center column would otherwise appear twice in the
// reconstruction.
func mirrorTail(w *Tensor, dropCenter bool) *Tensor {
	dims := w.Shape().DimsRef()
	rows, width := dims[0], dims[1]
	start := 0
	if dropCenter {
		start = 1
	}
	out := New(NewShape(rows, width-start))
	src, dst := w.DataPtr(), out.DataPtr()
	for r := 0; r < rows; r++ {
		for j := start; j < width; j++ {
			dst[r*(width-start)+j-start] = src[r*width+width-1-j]
		}
	}
	return out
}

// positionalWeights returns the effective positional weight matrix
// [output_dim, original_length]: the stored matrix directly, or the stored
// half mirrored back to full length in symmetric mode.
func (s *SeparableFC) positionalWeights() *Tensor {
	if !s.symmetric {
		return s.wPos.Value
	}
	return Concat(1, s.wPos.Value, mirrorTail(s.wPos.Value, s.oddLength))
}

// Forward computes output = x_flat @ W^T where W is the outer product of the
// (reconstructed) positional and channel weights, flattened to
// [output_dim, steps*channels]. Input [batch, steps, channels] ->
// output [batch, output_dim]. No bias, no activation.
//
// A malformed input rank or shape surfaces as a reshape/matmul panic at the
// op boundary; the layer adds no checks of its own.
func (s *SeparableFC) Forward(input *Tensor) (*Tensor, error) {
	if !s.built {
		if err := s.Build(input.Shape()); err != nil {
			return nil, err
		}
	}

	wPos := s.positionalWeights()
	// Outer product per output unit: [out, L, 1] * [out, 1, C] -> [out, L, C].
	wOut := MulBroadcast(wPos.ExpandDims(2), s.wChan.Value.ExpandDims(1))
	wFlat := wOut.Reshape(NewShape(s.outputDim, s.originalLength*s.numChannels))

	batch := input.Shape().At(0)
	xFlat := input.Reshape(NewShape(batch, s.originalLength*s.numChannels))
	return MatmulTransposedB(xFlat, wFlat), nil
}

// OutputShape returns [batch, output_dim] for an input [batch, steps, channels].
func (s *SeparableFC) OutputShape(inputShape Shape) (Shape, error) {
	return NewShape(inputShape.At(0), s.outputDim), nil
}

// Params returns W_pos and W_chan, empty before Build.
func (s *SeparableFC) Params() []*Param {
	if !s.built {
		return nil
	}
	return []*Param{s.wPos, s.wChan}
}

// NumParams returns the factored parameter count (width+channels)*output_dim.
// Zero before Build.
func (s *SeparableFC) NumParams() int {
	if !s.built {
		return 0
	}
	return (s.width + s.numChannels) * s.outputDim
}

// DenseEquivalentParams returns the parameter count an unconstrained dense
// layer would need for the same transform: steps*channels*output_dim.
// Zero before Build.
func (s *SeparableFC) DenseEquivalentParams() int {
	if !s.built {
		return 0
	}
	return s.originalLength * s.numChannels * s.outputDim
}

// Config reflects the constructor arguments into a flat mapping.
func (s *SeparableFC) Config() LayerConfig {
	return LayerConfig{
		"type":                   "SeparableFC",
		"name":                   s.name,
		"output_dim":             s.outputDim,
		"symmetric":              s.symmetric,
		"smoothness_regularizer": regularizerSpec(s.smoothnessReg),
		"positional_constraint":  constraintSpec(s.positionalCons),
	}
}

// separableFCFromConfig reconstructs a SeparableFC from its serialized config.
func separableFCFromConfig(cfg LayerConfig) (Layer, error) {
	outputDim, err := cfgInt(cfg, "output_dim")
	if err != nil {
		return nil, err
	}
	s := NewSeparableFC(outputDim)
	if name, err := cfgString(cfg, "name"); err == nil && name != "" {
		s.WithName(name)
	}
	symmetric, err := cfgBool(cfg, "symmetric", false)
	if err != nil {
		return nil, err
	}
	s.Symmetric(symmetric)

	reg, err := cfgRegularizer(cfg, "smoothness_regularizer")
	if err != nil {
		return nil, err
	}
	s.SmoothnessRegularizer(reg)

	cons, err := cfgConstraint(cfg, "positional_constraint")
	if err != nil {
		return nil, err
	}
	s.PositionalConstraint(cons)
	return s, nil
}
