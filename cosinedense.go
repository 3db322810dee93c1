// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

// CosineDense is a dense transform whose raw dot product is divided by the
// product of the input vector's norm and the per-unit weight vector's norm,
// so outputs behave like cosine similarities, bounded independent of vector
// magnitude. When a bias is used it is folded into both norms as one extra
// dimension of the compared vectors: the input norm gains a constant 1.0
// term and each weight-column norm gains the squared bias entry.
//
// Accepts any input of rank >= 2; the last axis is the feature dimension.
type CosineDense struct {
	name           string
	units          int
	kernelInit     Initializer
	activationName string
	activation     Activation
	kernelReg      Regularizer
	biasReg        Regularizer
	activityReg    Regularizer
	kernelCons     Constraint
	biasCons       Constraint
	useBias        bool
	inputDim       int // 0 until resolved at construction or build

	// One-shot seed values applied at build time, then released.
	initialKernel *Tensor
	initialBias   *Tensor

	built      bool
	builtShape Shape

	kernel, bias *Param
}

// NewCosineDense creates an unbuilt cosine-normalized dense layer with the
// given number of output units. Defaults: Glorot uniform kernel, bias on,
// linear activation. Optional behavior is set with the chained setters
// before the first Build or Forward call.
func NewCosineDense(units int) *CosineDense {
	return &CosineDense{
		name:       "cosine_dense",
		units:      units,
		kernelInit: GlorotUniform(),
		useBias:    true,
	}
}

// WithName sets the instance name used as the parameter-name prefix.
func (c *CosineDense) WithName(name string) *CosineDense {
	c.name = name
	return c
}

// KernelInitializer sets the kernel initialization policy.
func (c *CosineDense) KernelInitializer(init Initializer) *CosineDense {
	c.kernelInit = init
	return c
}

// Activation sets the activation applied to the normalized output, by name
// ("linear", "relu", "sigmoid", "tanh", "softmax"). Resolved at build time;
// an unknown name fails Build.
func (c *CosineDense) Activation(name string) *CosineDense {
	c.activationName = name
	return c
}

// UseBias toggles the bias parameter (affine vs purely linear transform).
func (c *CosineDense) UseBias(use bool) *CosineDense {
	c.useBias = use
	return c
}

// InputDim pre-resolves the trailing input dimension, for use when the layer
// is first in a model and the input shape is not yet known to the host.
func (c *CosineDense) InputDim(dim int) *CosineDense {
	c.inputDim = dim
	return c
}

// InitialWeights supplies explicit starting values. They overwrite the
// freshly initialized parameters exactly once at build time; the seed is not
// retained afterwards. bias may be nil when the layer has no bias.
func (c *CosineDense) InitialWeights(kernel, bias *Tensor) *CosineDense {
	c.initialKernel = kernel
	c.initialBias = bias
	return c
}

// KernelRegularizer sets the penalty on the kernel matrix.
func (c *CosineDense) KernelRegularizer(r Regularizer) *CosineDense {
	c.kernelReg = r
	return c
}

// BiasRegularizer sets the penalty on the bias vector.
func (c *CosineDense) BiasRegularizer(r Regularizer) *CosineDense {
	c.biasReg = r
	return c
}

// ActivityRegularizer sets the penalty the host applies to the layer's
// output. Stored and serialized; this package never invokes it.
func (c *CosineDense) ActivityRegularizer(r Regularizer) *CosineDense {
	c.activityReg = r
	return c
}

// KernelConstraint sets the projection applied to the kernel after updates.
func (c *CosineDense) KernelConstraint(cons Constraint) *CosineDense {
	c.kernelCons = cons
	return c
}

// BiasConstraint sets the projection applied to the bias after updates.
func (c *CosineDense) BiasConstraint(cons Constraint) *CosineDense {
	c.biasCons = cons
	return c
}

// Name returns the instance name.
func (c *CosineDense) Name() string { return c.name }

// ActivityRegularizerHandle returns the stored activity regularizer, nil if
// unset, for the host training loop to apply to this layer's outputs.
func (c *CosineDense) ActivityRegularizerHandle() Regularizer { return c.activityReg }

// Build resolves the input dimension from the trailing axis, allocates the
// kernel [input_dim, units] and optional bias [units], and applies the
// one-shot initial weights if supplied.
//
// Fails with a ConfigError if the input rank is below 2 or if the layer was
// already built for a different shape.
func (c *CosineDense) Build(inputShape Shape) error {
	if inputShape.NDim() < 2 {
		return configErrorf(c.name, "input rank must be >= 2, got shape %v", inputShape)
	}
	if c.built {
		if inputShape.Equal(c.builtShape) {
			return nil
		}
		return configErrorf(c.name, "already built for input shape %v, cannot rebuild for %v",
			c.builtShape, inputShape)
	}

	c.inputDim = inputShape.At(-1)

	activation, err := ActivationByName(c.activationName)
	if err != nil {
		return configErrorf(c.name, "%v", err)
	}
	c.activation = activation

	c.kernel = newParam(c.name+"_W", NewShape(c.inputDim, c.units),
		c.kernelInit, c.kernelReg, c.kernelCons)
	if c.useBias {
		c.bias = newParam(c.name+"_b", NewShape(c.units),
			ZeroInit(), c.biasReg, c.biasCons)
	}

	if c.initialKernel != nil {
		if !c.initialKernel.Shape().Equal(c.kernel.Value.Shape()) {
			return configErrorf(c.name, "initial kernel shape %v != expected %v",
				c.initialKernel.Shape(), c.kernel.Value.Shape())
		}
		copy(c.kernel.Value.DataPtr(), c.initialKernel.DataPtr())
	}
	if c.initialBias != nil && c.bias != nil {
		if !c.initialBias.Shape().Equal(c.bias.Value.Shape()) {
			return configErrorf(c.name, "initial bias shape %v != expected %v",
				c.initialBias.Shape(), c.bias.Value.Shape())
		}
		copy(c.bias.Value.DataPtr(), c.initialBias.DataPtr())
	}
	c.initialKernel, c.initialBias = nil, nil

	c.builtShape = inputShape
	c.built = true
	return nil
}

// Forward computes the cosine-normalized dense transform:
//
//	xnorm  = sqrt(sum(x^2, last axis) + xb + eps)        (xb = 1 with bias, else 0)
//	Wnorm  = sqrt(sum(W^2, input axis) + b^2 + eps)      (per output unit)
//	output = activation(x @ W / (xnorm*Wnorm) [+ b / (xnorm*Wnorm)])
//
// Leading dims are treated as a flat batch and restored on the output, whose
// last axis becomes units. The epsilon keeps the division finite for all-zero
// inputs or weights.
func (c *CosineDense) Forward(input *Tensor) (*Tensor, error) {
	if !c.built {
		if err := c.Build(input.Shape()); err != nil {
			return nil, err
		}
	}
	if input.Shape().At(-1) != c.inputDim {
		return nil, configErrorf(c.name, "last input axis is %d, layer was built for %d",
			input.Shape().At(-1), c.inputDim)
	}

	batchDims, batchSize, _ := splitLast(input.Shape().DimsRef())
	xFlat := input.Reshape(NewShape(batchSize, c.inputDim))

	xb := 0.0
	if c.useBias {
		xb = 1.0
	}

	// [batch, 1]
	xnorm := xFlat.Square().SumAxis(1, true).AddScalar(xb + Epsilon).Sqrt()

	// [units]
	wnorm := c.kernel.Value.Square().SumAxis(0, false)
	if c.useBias {
		wnorm = wnorm.Add(c.bias.Value.Square())
	}
	wnorm = wnorm.AddScalar(Epsilon).Sqrt()

	// [batch, units]
	xWnorm := MulBroadcast(xnorm, wnorm)

	output := DivBroadcast(Matmul(xFlat, c.kernel.Value), xWnorm)
	if c.useBias {
		output = output.Add(DivBroadcast(c.bias.Value, xWnorm))
	}
	output = c.activation(output)
	return output.Reshape(withLastDim(batchDims, c.units)), nil
}

// OutputShape returns the input shape with the last axis replaced by units.
// Fails with a ConfigError if the rank is below 2 or the last axis disagrees
// with a previously resolved input dimension.
func (c *CosineDense) OutputShape(inputShape Shape) (Shape, error) {
	if inputShape.NDim() < 2 {
		return Shape{}, configErrorf(c.name, "input rank must be >= 2, got shape %v", inputShape)
	}
	if c.inputDim != 0 && inputShape.At(-1) != c.inputDim {
		return Shape{}, configErrorf(c.name, "last input axis is %d, layer expects %d",
			inputShape.At(-1), c.inputDim)
	}
	dims := inputShape.Dims()
	dims[len(dims)-1] = c.units
	return NewShape(dims...), nil
}

// Params returns the kernel (and bias, if present), empty before Build.
func (c *CosineDense) Params() []*Param {
	if !c.built {
		return nil
	}
	if c.useBias {
		return []*Param{c.kernel, c.bias}
	}
	return []*Param{c.kernel}
}

// Config reflects the constructor arguments into a flat mapping. Initial
// weight seeds are intentionally absent: they are consumed at build time.
func (c *CosineDense) Config() LayerConfig {
	return LayerConfig{
		"type":                 "CosineDense",
		"name":                 c.name,
		"units":                c.units,
		"kernel_initializer":   initializerSpec(c.kernelInit),
		"activation":           c.activationName,
		"kernel_regularizer":   regularizerSpec(c.kernelReg),
		"bias_regularizer":     regularizerSpec(c.biasReg),
		"activity_regularizer": regularizerSpec(c.activityReg),
		"kernel_constraint":    constraintSpec(c.kernelCons),
		"bias_constraint":      constraintSpec(c.biasCons),
		"use_bias":             c.useBias,
		"input_dim":            c.inputDim,
	}
}

// cosineDenseFromConfig reconstructs a CosineDense from its serialized config.
func cosineDenseFromConfig(cfg LayerConfig) (Layer, error) {
	units, err := cfgInt(cfg, "units")
	if err != nil {
		return nil, err
	}
	c := NewCosineDense(units)
	if name, err := cfgString(cfg, "name"); err == nil && name != "" {
		c.WithName(name)
	}

	if init, err := cfgInitializer(cfg, "kernel_initializer"); err != nil {
		return nil, err
	} else if init != nil {
		c.KernelInitializer(init)
	}

	activation, err := cfgString(cfg, "activation")
	if err != nil {
		return nil, err
	}
	c.Activation(activation)

	kernelReg, err := cfgRegularizer(cfg, "kernel_regularizer")
	if err != nil {
		return nil, err
	}
	c.KernelRegularizer(kernelReg)

	biasReg, err := cfgRegularizer(cfg, "bias_regularizer")
	if err != nil {
		return nil, err
	}
	c.BiasRegularizer(biasReg)

	activityReg, err := cfgRegularizer(cfg, "activity_regularizer")
	if err != nil {
		return nil, err
	}
	c.ActivityRegularizer(activityReg)

	kernelCons, err := cfgConstraint(cfg, "kernel_constraint")
	if err != nil {
		return nil, err
	}
	c.KernelConstraint(kernelCons)

	biasCons, err := cfgConstraint(cfg, "bias_constraint")
	if err != nil {
		return nil, err
	}
	c.BiasConstraint(biasCons)

	useBias, err := cfgBool(cfg, "use_bias", true)
	if err != nil {
		return nil, err
	}
	c.UseBias(useBias)

	if _, ok := cfg["input_dim"]; ok {
		dim, err := cfgInt(cfg, "input_dim")
		if err != nil {
			return nil, err
		}
		c.InputDim(dim)
	}
	return c, nil
}
